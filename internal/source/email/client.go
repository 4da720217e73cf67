package email

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/notification-sync/internal/source"
)

// backendName identifies this backend in AuthError values.
const backendName = "imap"

// previewBytes caps how much of each message body is fetched.
const previewBytes = 4096

// IMAPClient wraps go-imap v2 for connecting to and querying IMAP servers.
type IMAPClient struct {
	host     string
	port     string
	username string
	password string
	tls      bool
	mailbox  string
}

// NewIMAPClient creates a new IMAP client configuration. An empty
// mailbox means INBOX.
func NewIMAPClient(
	host, port, username, password string, tls bool, mailbox string,
) *IMAPClient {
	if mailbox == "" {
		mailbox = "INBOX"
	}
	return &IMAPClient{
		host:     host,
		port:     port,
		username: username,
		password: password,
		tls:      tls,
		mailbox:  mailbox,
	}
}

// Connect establishes a connection to the IMAP server, authenticates,
// and returns the connected client with its logout func. The caller must
// call logout exactly once when done with the client.
func (c *IMAPClient) Connect(
	ctx context.Context,
) (client *imapclient.Client, logout func(), err error) {
	addr := c.host + ":" + c.port

	if c.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	release := closeOnDone(ctx, client)
	logout = func() {
		_ = client.Logout().Wait()
		release()
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		logout()
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, &source.AuthError{
			Backend: backendName,
			Message: fmt.Sprintf(
				"authentication failed for %s: %v",
				c.username, err,
			),
		}
	}

	return client, logout, nil
}

// closeOnDone closes c if ctx ends before release is called. The IMAP
// client has no context support; closing unblocks it.
func closeOnDone(ctx context.Context, c io.Closer) (release func()) {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	return func() { stop() }
}

// selectMailbox connects and selects the configured mailbox.
func (c *IMAPClient) selectMailbox(ctx context.Context) (*imapclient.Client, func(), error) {
	client, logout, err := c.Connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	if _, err := client.Select(c.mailbox, nil).Wait(); err != nil {
		logout()
		return nil, nil, fmt.Errorf("selecting %s: %w", c.mailbox, err)
	}
	return client, logout, nil
}

// FetchMessages returns up to limit messages, newest first, skipping the
// newest skip messages. Each carries its envelope, flags and a plain-text
// preview of the body.
func (c *IMAPClient) FetchMessages(
	ctx context.Context, skip, limit int,
) ([]Message, error) {
	client, logout, err := c.selectMailbox(ctx)
	if err != nil {
		return nil, err
	}
	defer logout()

	searchData, err := client.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	uids := searchData.AllUIDs()
	uids = window(uids, skip, limit)
	if len(uids) == 0 {
		return nil, nil
	}

	bodySection := &imap.FetchItemBodySection{
		Peek:    true,
		Partial: &imap.SectionPartial{Offset: 0, Size: previewBytes},
	}

	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		Flags:       true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), fetchOpts)
	defer fetchCmd.Close()

	var messages []Message
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		m := Message{Envelope: envelopeFromBuffer(buf)}
		if raw := buf.FindBodySection(bodySection); raw != nil {
			m.TextBody = parseTextBody(raw)
		}
		messages = append(messages, m)
	}

	if err := fetchCmd.Close(); err != nil {
		return messages, fmt.Errorf("fetching messages: %w", err)
	}

	sortNewestFirst(messages)
	return messages, nil
}

// SetFlags connects to IMAP and modifies flags on a message.
// If add is true, the flags are added; otherwise they are removed.
func (c *IMAPClient) SetFlags(
	ctx context.Context,
	uid uint32,
	flags []imap.Flag,
	add bool,
) error {
	client, logout, err := c.selectMailbox(ctx)
	if err != nil {
		return err
	}
	defer logout()

	op := imap.StoreFlagsAdd
	if !add {
		op = imap.StoreFlagsDel
	}

	storeCmd := client.Store(imap.UIDSetNum(imap.UID(uid)), &imap.StoreFlags{
		Op:     op,
		Silent: true,
		Flags:  flags,
	}, nil)

	return storeCmd.Close()
}

// window picks the UIDs for one page, newest first. UIDs arrive in
// ascending order.
func window(uids []imap.UID, skip, limit int) []imap.UID {
	end := len(uids) - skip
	if end <= 0 {
		return nil
	}
	start := 0
	if limit > 0 && end-limit > 0 {
		start = end - limit
	}
	return uids[start:end]
}

// envelopeFromBuffer extracts an Envelope from a FetchMessageBuffer.
func envelopeFromBuffer(buf *imapclient.FetchMessageBuffer) Envelope {
	env := Envelope{
		UID: uint32(buf.UID),
	}

	if buf.Envelope != nil {
		env.MessageID = buf.Envelope.MessageID
		env.Subject = buf.Envelope.Subject
		env.Date = buf.Envelope.Date

		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			if from.Name != "" {
				env.From = from.Name
			} else {
				env.From = from.Addr()
			}
		}
	}

	for _, flag := range buf.Flags {
		env.Flags = append(env.Flags, string(flag))
	}

	return env
}

// parseTextBody parses a raw RFC 2822 message using go-message and
// returns its text/plain part. Unparseable input is returned as is.
func parseTextBody(raw []byte) string {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw)
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err != nil {
			// io.EOF or a truncated preview; keep what we have.
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		if contentType != "" && !strings.HasPrefix(contentType, "text/plain") {
			continue
		}
		body, readErr := io.ReadAll(part.Body)
		if len(body) > 0 || readErr == nil {
			return strings.TrimSpace(string(body))
		}
	}
	return ""
}
