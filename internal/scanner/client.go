package scanner

import (
	"crypto/tls"
	"fmt"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// Client is the slice of the IMAP protocol a scan run needs. Satisfied by
// *client.Client from emersion/go-imap; tests substitute a fake.
type Client interface {
	Login(username, password string) error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
	Logout() error
}

// Dialer opens an encrypted connection to an IMAP endpoint.
type Dialer func(host string, port int) (Client, error)

// TLSDialer returns the production dialer. skipVerify disables certificate
// verification for setups behind intercepting proxies.
func TLSDialer(skipVerify bool) Dialer {
	return func(host string, port int) (Client, error) {
		var tlsConfig *tls.Config
		if skipVerify {
			tlsConfig = &tls.Config{InsecureSkipVerify: true}
		}
		return client.DialTLS(fmt.Sprintf("%s:%d", host, port), tlsConfig)
	}
}
