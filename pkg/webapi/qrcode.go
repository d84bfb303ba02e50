package webapi

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	pin "github.com/legalpin/legalcert/pkg"
	qrcode "github.com/skip2/go-qrcode"
)

// GenerateQRCodePNG renders content; fg and bg are optional hex colours
// (rgb or rrggbb, no '#').
func GenerateQRCodePNG(content string, size int, fg string, bg string) ([]byte, error) {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return []byte{}, err
	}
	if c, ok := parseHexColor(fg); ok {
		qr.ForegroundColor = c
	}
	if c, ok := parseHexColor(bg); ok {
		qr.BackgroundColor = c
	}
	return qr.PNG(size)
}

// CertificateLink is what the QR code of a certification points to: the
// engine's block explorer when one is configured.
func CertificateLink(conf pin.EngineConfig, engine string, txid pin.TxID) string {
	if conf.ExplorerURL != "" {
		return fmt.Sprintf(conf.ExplorerURL, string(txid))
	}
	return fmt.Sprintf("%s:%s", engine, string(txid))
}

func parseHexColor(s string) (color.RGBA, bool) {
	s = strings.TrimPrefix(s, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.RGBA{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, false
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, true
}
