// Package scanner runs one full pass over a mailbox's Spam folder:
// authenticate, find unread messages, pull their raw content, extract and
// resolve the sender IP, then mark everything fetched as read.
package scanner

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-message/mail"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"spamtrace/internal/config"
	"spamtrace/internal/domain"
	"spamtrace/internal/extract"
	"spamtrace/internal/geoip"
)

// Stage identifies where in a run a failure happened. The HTTP layer maps
// stages to response payloads.
type Stage string

const (
	StageConnect Stage = "connect"
	StageLogin   Stage = "login"
	StageSelect  Stage = "select"
	StageSearch  Stage = "search"
	StageFetch   Stage = "fetch"
)

// ScanError tags an underlying failure with the stage it occurred in.
type ScanError struct {
	Stage Stage
	Err   error
}

func (e *ScanError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *ScanError) Unwrap() error { return e.Err }

// Resolver maps an IP address to geolocation metadata.
type Resolver interface {
	Lookup(ctx context.Context, ip string) *domain.GeoInfo
}

type Scanner struct {
	cfg  *config.Config
	log  *zap.Logger
	dial Dialer

	// newResolver builds a fresh resolver per run so the address cache
	// and pacing state never outlive the run.
	newResolver func(log *zap.Logger) Resolver
}

func New(cfg *config.Config, log *zap.Logger) *Scanner {
	return &Scanner{
		cfg:  cfg,
		log:  log,
		dial: TLSDialer(cfg.IMAPSkipVerify),
		newResolver: func(log *zap.Logger) Resolver {
			return geoip.New(cfg.GeoBaseURL, cfg.GeoMinInterval, log)
		},
	}
}

// Scan executes one run with the supplied credentials and returns the
// collected records plus a summary. The connection is torn down before
// any error propagates. Record order is the order message bodies finish
// arriving, which the server may interleave; callers must not assume
// fetch-request order.
func (s *Scanner) Scan(ctx context.Context, req domain.ScanRequest) (*domain.ScanResult, error) {
	log := s.log.With(zap.String("scan_id", ulid.Make().String()))

	c, err := s.dial(s.cfg.IMAPHost, s.cfg.IMAPPort)
	if err != nil {
		return nil, &ScanError{StageConnect, fmt.Errorf("dial %s:%d: %w", s.cfg.IMAPHost, s.cfg.IMAPPort, err)}
	}
	defer c.Logout()

	if err := c.Login(req.Email, req.AppPassword); err != nil {
		return nil, &ScanError{StageLogin, err}
	}

	if _, err := c.Select(s.cfg.SpamFolder, false); err != nil {
		return nil, &ScanError{StageSelect, err}
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, &ScanError{StageSearch, err}
	}

	if len(uids) == 0 {
		log.Info("no unread messages")
		return &domain.ScanResult{Message: "No unread emails.", Emails: []*domain.MessageRecord{}}, nil
	}

	// UID SEARCH results are ascending and UIDs follow arrival order, so
	// the tail of the list is the most recently received mail.
	if req.MaxEmails > 0 && len(uids) > req.MaxEmails {
		uids = uids[len(uids)-req.MaxEmails:]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchInternalDate, section.FetchItem()}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, messages)
	}()

	resolver := s.newResolver(log)
	records := make([]*domain.MessageRecord, 0, len(uids))
	for msg := range messages {
		rec, err := s.buildRecord(ctx, resolver, msg, section)
		if err != nil {
			log.Warn("skipping message", zap.Uint32("uid", msg.Uid), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}

	if err := <-done; err != nil {
		return nil, &ScanError{StageFetch, err}
	}

	// One batched store for every fetched message. A failure here must
	// not discard the records already collected.
	flags := []interface{}{imap.SeenFlag}
	if err := c.UidStore(seqset, imap.FormatFlagsOp(imap.AddFlags, true), flags, nil); err != nil {
		log.Warn("failed to mark messages as read", zap.Error(err))
	}

	log.Info("scan complete", zap.Int("processed", len(records)))
	return &domain.ScanResult{
		Message: fmt.Sprintf("Processed %d email(s).", len(records)),
		Emails:  records,
	}, nil
}

func (s *Scanner) buildRecord(ctx context.Context, resolver Resolver, msg *imap.Message, section *imap.BodySectionName) (*domain.MessageRecord, error) {
	r := msg.GetBody(section)
	if r == nil {
		return nil, fmt.Errorf("server didn't return message body")
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if s.cfg.MaxEmailBytes > 0 && len(raw) > s.cfg.MaxEmailBytes {
		return nil, fmt.Errorf("message too large: %d bytes", len(raw))
	}

	rec := &domain.MessageRecord{
		UID:     msg.Uid,
		Subject: "(no subject)",
		Date:    msg.InternalDate,
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	header := mr.Header
	if subject, err := header.Subject(); err == nil && subject != "" {
		rec.Subject = subject
	}
	if fromList, err := header.AddressList("From"); err == nil && len(fromList) > 0 {
		rec.From = fromList[0].String()
	}
	if date, err := header.Date(); err == nil && !date.IsZero() {
		rec.Date = date
	}

	if ip, ok := extract.SenderIP(string(raw)); ok {
		rec.SenderIP = ip
		rec.IPInfo = resolver.Lookup(ctx, ip)
	}
	return rec, nil
}
