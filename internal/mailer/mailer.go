package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mfareport/cli/internal/utils"
)

// Client is the subset of *smtp.Client the mailer drives
type Client interface {
	Extension(ext string) (bool, string)
	StartTLS(config *tls.Config) error
	Auth(a smtp.Auth) error
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// DialFunc opens a plaintext SMTP session to addr
type DialFunc func(ctx context.Context, addr, host string, timeout time.Duration) (Client, error)

// Config contains the relay connection settings
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// Message is a single plaintext mail
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends mail through a STARTTLS relay
type Mailer struct {
	cfg  Config
	dial DialFunc
	now  func() time.Time
	// TLSConfig overrides the TLS settings used for the upgrade
	TLSConfig *tls.Config
}

// New creates a mailer that dials the relay over TCP
func New(cfg Config) *Mailer {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &Mailer{cfg: cfg, dial: dialTCP, now: time.Now}
}

// WithDialer replaces the dialer, used by tests
func (m *Mailer) WithDialer(dial DialFunc) *Mailer {
	m.dial = dial
	return m
}

func dialTCP(ctx context.Context, addr, host string, timeout time.Duration) (Client, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(timeout))
	}
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// Send delivers msg. The connection is upgraded with STARTTLS before
// authenticating and is closed exactly once whatever the outcome.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	c, err := m.dial(ctx, addr, m.cfg.Host, m.cfg.Timeout)
	if err != nil {
		return &utils.DeliveryError{Kind: utils.DeliveryNetwork, Step: "connect", Err: err}
	}
	// a successful QUIT closes the connection itself
	quit := false
	defer func() {
		if !quit {
			c.Close()
		}
	}()

	if ok, _ := c.Extension("STARTTLS"); !ok {
		return &utils.DeliveryError{Kind: utils.DeliveryTransport, Step: "starttls",
			Err: fmt.Errorf("%s does not offer STARTTLS", m.cfg.Host)}
	}
	if err := c.StartTLS(m.tlsConfig()); err != nil {
		return classify("starttls", err)
	}

	if err := c.Auth(smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)); err != nil {
		return classify("auth", err)
	}
	if err := c.Mail(m.cfg.From); err != nil {
		return classify("mail from", err)
	}
	if err := c.Rcpt(msg.To); err != nil {
		return classify("rcpt to", err)
	}

	w, err := c.Data()
	if err != nil {
		return classify("data", err)
	}
	if _, err := w.Write(m.build(msg)); err != nil {
		w.Close()
		return classify("data", err)
	}
	if err := w.Close(); err != nil {
		return classify("data", err)
	}

	// the message is accepted at this point; a failed QUIT is not a delivery failure
	quit = c.Quit() == nil
	return nil
}

func (m *Mailer) tlsConfig() *tls.Config {
	if m.TLSConfig != nil {
		return m.TLSConfig
	}
	return &tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}
}

// build renders headers and a CRLF-normalised body
func (m *Mailer) build(msg Message) []byte {
	var b strings.Builder
	header := func(k, v string) {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\r\n")
	}

	header("From", m.cfg.From)
	header("To", msg.To)
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", m.now().Format(time.RFC1123Z))
	header("Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), senderDomain(m.cfg.From)))
	header("MIME-Version", "1.0")
	header("Content-Type", "text/plain; charset=UTF-8")
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")

	body := strings.ReplaceAll(msg.Body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

func senderDomain(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 && i < len(addr)-1 {
		return addr[i+1:]
	}
	return "localhost"
}

// classify splits failures into network and mail-transport errors
func classify(step string, err error) error {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		return &utils.DeliveryError{Kind: utils.DeliveryTransport, Step: step, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) {
		return &utils.DeliveryError{Kind: utils.DeliveryNetwork, Step: step, Err: err}
	}
	return &utils.DeliveryError{Kind: utils.DeliveryTransport, Step: step, Err: err}
}
