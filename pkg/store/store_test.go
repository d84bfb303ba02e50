package store

import (
	"fmt"
	"testing"
	"time"

	pin "github.com/legalpin/legalcert/pkg"
	"github.com/stretchr/testify/require"
)

func testCert(txid string) pin.Certification {
	return pin.Certification{
		TxID:        pin.TxID(txid),
		Engine:      "bitcoin",
		Fingerprint: "00ff",
		Tag:         pin.DefaultTag,
		Status:      pin.StatusUnknown,
		Message:     "Broadcast",
		Created:     time.Now().UTC(),
	}
}

func TestStore(t *testing.T) {

	// implementations to test
	stores := map[string]func() pin.Store{
		"sqlite": func() pin.Store {
			// :memory: or postgres://postgres:@localhost/testdb?sslmode=disable
			s, err := NewSQLiteStore(":memory:")
			require.NoError(t, err, "Couldn't open sqlite DB")
			return s
		},
		"mock": func() pin.Store { return NewMock() },
	}

	for storeName, open := range stores {

		//create a unique test name
		n := func(s string) string {
			return fmt.Sprintf("Store-%s-%s", storeName, s)
		}

		t.Run(n("StoreAndGet"), func(t *testing.T) {
			store := open()
			defer store.Close()

			cert := testCert("tx1")
			require.NoError(t, store.StoreCertification(cert))

			got, err := store.GetCertification("tx1")
			require.NoError(t, err)
			require.Equal(t, cert.TxID, got.TxID)
			require.Equal(t, "bitcoin", got.Engine)
			require.Equal(t, "00ff", got.Fingerprint)
			require.Equal(t, pin.StatusUnknown, got.Status)
			require.Equal(t, "Broadcast", got.Message)
			require.WithinDuration(t, cert.Created, got.Created, time.Second)
			require.Equal(t, pin.UnknownResult().Status, got.Result().Status)
			require.Nil(t, got.Result().Confirmations)

			err = store.StoreCertification(cert)
			require.True(t, pin.IsError(err, pin.AlreadyExists), "got %v", err)

			_, err = store.GetCertification("nope")
			require.True(t, pin.IsNotFoundError(err), "got %v", err)
		})

		t.Run(n("Update"), func(t *testing.T) {
			store := open()
			defer store.Close()

			require.NoError(t, store.StoreCertification(testCert("tx1")))
			res := pin.Classify(3, 6)
			require.NoError(t, store.UpdateCertification("tx1", res))

			got, err := store.GetCertification("tx1")
			require.NoError(t, err)
			require.True(t, res.Equal(got.Result()), "got %+v", got.Result())

			err = store.UpdateCertification("nope", res)
			require.True(t, pin.IsNotFoundError(err), "got %v", err)
		})

		t.Run(n("ListPaging"), func(t *testing.T) {
			store := open()
			defer store.Close()

			for i := 1; i <= 5; i++ {
				require.NoError(t, store.StoreCertification(testCert(fmt.Sprintf("tx%d", i))))
			}

			var seen []pin.TxID
			cursor := 0
			for page := 0; page < 10; page++ {
				items, next, err := store.ListCertifications(cursor, 2)
				require.NoError(t, err)
				for _, c := range items {
					seen = append(seen, c.TxID)
				}
				if next == 0 {
					break
				}
				cursor = next
			}
			require.Equal(t, []pin.TxID{"tx5", "tx4", "tx3", "tx2", "tx1"}, seen)
		})

		t.Run(n("ListPending"), func(t *testing.T) {
			store := open()
			defer store.Close()

			for i := 1; i <= 3; i++ {
				require.NoError(t, store.StoreCertification(testCert(fmt.Sprintf("tx%d", i))))
			}
			require.NoError(t, store.UpdateCertification("tx2", pin.Classify(6, 6)))
			require.NoError(t, store.UpdateCertification("tx3", pin.NotFoundResult()))

			pending, err := store.ListPending()
			require.NoError(t, err)
			require.Len(t, pending, 2)
			require.Equal(t, pin.TxID("tx1"), pending[0].TxID)
			require.Equal(t, pin.TxID("tx3"), pending[1].TxID)
			require.Equal(t, pin.StatusNotFound, pending[1].Status)
		})
	}
}

func TestRebind(t *testing.T) {
	s := sqlStore{numbered: true}
	require.Equal(t, "SELECT a FROM b WHERE c = $1 AND d < $2", s.rebind("SELECT a FROM b WHERE c = ? AND d < ?"))
	s.numbered = false
	require.Equal(t, "x = ?", s.rebind("x = ?"))
}
