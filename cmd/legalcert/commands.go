package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"time"

	pin "github.com/legalpin/legalcert/pkg"
	"github.com/legalpin/legalcert/pkg/webapi"
	"github.com/spf13/cobra"
)

/*
	These commands talk to a chain node directly through the configured
	engine, without a running server, except 'list' which reads the
	journal of a running server through its admin REST API.
*/

type certifyArgs struct {
	Text     string
	Hex      string
	Wait     bool
	Password string
	Timeout  time.Duration
}

func addEngineCommands(root *cobra.Command, config *pin.Config) {
	var ca certifyArgs
	certifyCmd := &cobra.Command{
		Use:   "certify",
		Short: "Anchor a fingerprint (1 to 32 bytes) and print the txid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Certify(*config, ca)
		},
	}
	certifyCmd.Flags().StringVar(&ca.Text, "text", "", "Fingerprint as literal text")
	certifyCmd.Flags().StringVar(&ca.Hex, "hex", "", "Fingerprint as hex")
	certifyCmd.Flags().BoolVar(&ca.Wait, "wait", false, "Show status until confirmed")
	certifyCmd.Flags().StringVar(&ca.Password, "password", "", "Unlock the wallet first if it is locked")
	certifyCmd.Flags().DurationVar(&ca.Timeout, "unlock-timeout", 0, "Wallet unlock duration (default: engine unlock_seconds)")

	statusCmd := &cobra.Command{
		Use:   "status <txid>",
		Short: "Print the confirmation status of a certification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return Status(*config, pin.TxID(args[0]))
		},
	}

	waitCmd := &cobra.Command{
		Use:   "wait <txid>",
		Short: "Show status until the certification is confirmed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return Wait(*config, pin.TxID(args[0]))
		},
	}

	lockCmd := &cobra.Command{
		Use:   "lock",
		Short: "Lock the engine wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Lock(*config)
		},
	}

	var unlockTimeout time.Duration
	unlockCmd := &cobra.Command{
		Use:   "unlock <password>",
		Short: "Unlock the engine wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return Unlock(*config, args[0], unlockTimeout)
		},
	}
	unlockCmd.Flags().DurationVar(&unlockTimeout, "timeout", 0, "Unlock duration (default: engine unlock_seconds)")

	isLockedCmd := &cobra.Command{
		Use:   "islocked",
		Short: "Print whether the engine wallet is locked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return IsLocked(*config)
		},
	}

	var remote string
	var cursor, limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List certifications recorded by a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/certs?cursor=%d&limit=%d", cursor, limit)
			u, err := adminAPIURL(*config, remote, path)
			if err != nil {
				return err
			}
			return getURL(u, os.Stdout)
		},
	}
	listCmd.Flags().StringVar(&remote, "remote", "", "Admin API base URL (default: from config)")
	listCmd.Flags().IntVar(&cursor, "cursor", 0, "Cursor returned by the previous page")
	listCmd.Flags().IntVar(&limit, "limit", 20, "Page size")

	root.AddCommand(certifyCmd, statusCmd, waitCmd, lockCmd, unlockCmd, isLockedCmd, listCmd)
}

// localAPI wraps the configured engines without a journal or bus.
func localAPI(ctx context.Context, conf pin.Config) (*pin.API, error) {
	name := conf.Legalcert.DefaultEngine
	engine, err := NewEngine(ctx, name, conf)
	if err != nil {
		return nil, err
	}
	return pin.NewAPI(map[string]pin.Engine{name: engine}, nil, nil, conf), nil
}

// interruptible returns a context cancelled by ^C.
func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func (a certifyArgs) fingerprint() ([]byte, error) {
	switch {
	case a.Text != "" && a.Hex != "":
		return nil, fmt.Errorf("use only one of --text and --hex")
	case a.Hex != "":
		b, err := hex.DecodeString(a.Hex)
		if err != nil {
			return nil, fmt.Errorf("--hex: %w", err)
		}
		return b, nil
	case a.Text != "":
		return []byte(a.Text), nil
	default:
		return nil, fmt.Errorf("one of --text or --hex is required")
	}
}

func Certify(conf pin.Config, a certifyArgs) error {
	fp, err := a.fingerprint()
	if err != nil {
		return err
	}
	ctx, cancel := interruptible()
	defer cancel()
	api, err := localAPI(ctx, conf)
	if err != nil {
		return err
	}
	name := conf.Legalcert.DefaultEngine

	if a.Password != "" {
		locked, err := api.IsLocked(ctx, name)
		if err != nil {
			return err
		}
		if locked {
			fmt.Println("Wallet is locked, trying to unlock it")
			ok, err := api.Unlock(ctx, name, a.Password, a.Timeout)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("cannot unlock the wallet")
			}
			fmt.Println("Wallet unlocked successfully")
		}
	}

	cert, err := api.Certify(ctx, name, fp)
	if err != nil {
		return err
	}
	link := webapi.CertificateLink(conf.Engines[name], name, cert.TxID)
	fmt.Println("Sent to blockchain with txid:", cert.TxID)
	fmt.Println("Check it out:", link)
	if !a.Wait {
		return nil
	}
	fmt.Println("Waiting confirmations")
	if err := showUntilConfirmed(ctx, api, conf, name, cert.TxID); err != nil {
		return err
	}
	fmt.Println("Result:", link)
	return nil
}

func Status(conf pin.Config, txid pin.TxID) error {
	ctx, cancel := interruptible()
	defer cancel()
	api, err := localAPI(ctx, conf)
	if err != nil {
		return err
	}
	res, err := api.CertStatus(ctx, conf.Legalcert.DefaultEngine, txid)
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

func Wait(conf pin.Config, txid pin.TxID) error {
	ctx, cancel := interruptible()
	defer cancel()
	api, err := localAPI(ctx, conf)
	if err != nil {
		return err
	}
	return showUntilConfirmed(ctx, api, conf, conf.Legalcert.DefaultEngine, txid)
}

// showUntilConfirmed prints every status change until the transaction is
// confirmed.
func showUntilConfirmed(ctx context.Context, api *pin.API, conf pin.Config, name string, txid pin.TxID) error {
	opts := conf.PollOptions()
	last := pin.UnknownResult()
	opts.OnStatus = func(res pin.Result) {
		if !res.Equal(last) {
			printResult(res)
			last = res
		}
	}
	_, err := api.AwaitConfirmation(ctx, name, txid, opts)
	return err
}

func printResult(res pin.Result) {
	o, _ := json.Marshal(res)
	fmt.Println(string(o))
}

func Lock(conf pin.Config) error {
	ctx, cancel := interruptible()
	defer cancel()
	api, err := localAPI(ctx, conf)
	if err != nil {
		return err
	}
	if err := api.Lock(ctx, conf.Legalcert.DefaultEngine); err != nil {
		return err
	}
	fmt.Println("Wallet locked")
	return nil
}

func Unlock(conf pin.Config, password string, timeout time.Duration) error {
	ctx, cancel := interruptible()
	defer cancel()
	api, err := localAPI(ctx, conf)
	if err != nil {
		return err
	}
	ok, err := api.Unlock(ctx, conf.Legalcert.DefaultEngine, password, timeout)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("cannot unlock the wallet")
	}
	fmt.Println("Wallet unlocked successfully")
	return nil
}

func IsLocked(conf pin.Config) error {
	ctx, cancel := interruptible()
	defer cancel()
	api, err := localAPI(ctx, conf)
	if err != nil {
		return err
	}
	locked, err := api.IsLocked(ctx, conf.Legalcert.DefaultEngine)
	if err != nil {
		return err
	}
	fmt.Println(locked)
	return nil
}

// work out the remote admin URL from args or config and return
// a complete path with our best guess
func adminAPIURL(c pin.Config, remote string, path string) (string, error) {
	base := remote
	if base == "" {
		host := c.WebAPI.AdminBind
		if host == "" {
			host = "localhost"
		}
		base = fmt.Sprintf("http://%s:%s/", host, c.WebAPI.AdminPort)
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	p, err := url.Parse(path)
	if err != nil {
		return "", err
	}

	return u.ResolveReference(p).String(), nil
}

// getURL copies the body of a GET on the admin API to out
func getURL(url string, out io.Writer) error {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to send HTTP request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected response status code: %d: %s", resp.StatusCode, body)
	}

	_, err = io.Copy(out, resp.Body)
	return err
}
