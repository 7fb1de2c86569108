package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Config holds the SMTP submission settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string

	// Timeout bounds a single delivery, dial to QUIT. Zero means no limit
	// beyond the caller's context.
	Timeout time.Duration

	// SendsPerSecond paces outbound deliveries. Zero disables pacing.
	SendsPerSecond float64
}

// Mailer sends emails via SMTP.
type Mailer struct {
	cfg     *Config
	logger  *slog.Logger
	limiter *rate.Limiter
	now     func() time.Time

	// sendFn performs the delivery; replaced in tests.
	sendFn func(ctx context.Context, msg Message) error
}

func New(cfg *Config, logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Mailer{cfg: cfg, logger: logger, now: time.Now}
	if cfg.SendsPerSecond > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(cfg.SendsPerSecond), 1)
	}
	m.sendFn = m.deliver
	return m
}

// Send delivers msg, waiting for a send slot first when pacing is enabled.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("mailer: waiting for send slot: %w", err)
		}
	}

	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	if err := m.sendFn(ctx, msg); err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	return nil
}

// Ping dials the server and authenticates without sending anything.
func (m *Mailer) Ping(ctx context.Context) error {
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	c, stop, err := m.dial(ctx)
	if err != nil {
		return err
	}
	defer stop()
	defer c.Close()

	if err := m.auth(c); err != nil {
		return err
	}
	return c.Quit()
}

func (m *Mailer) deliver(ctx context.Context, msg Message) error {
	c, stop, err := m.dial(ctx)
	if err != nil {
		return err
	}
	defer stop()
	defer c.Close()

	if err := m.auth(c); err != nil {
		return err
	}
	if err := c.Mail(msg.From.Address); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	for _, rcpt := range msg.To {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO: %w", err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write([]byte(m.formatMessage(msg))); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing message: %w", err)
	}
	m.logger.Debug("smtp: message accepted", "recipients", len(msg.To), "attachments", len(msg.Attachments))
	return c.Quit()
}

// dial connects to the server, using implicit TLS on port 465 and STARTTLS
// otherwise when offered. The returned stop func must be called once the
// session is finished; until then, cancelling ctx closes the connection.
func (m *Mailer) dial(ctx context.Context) (*smtp.Client, func() bool, error) {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	tlsConfig := &tls.Config{ServerName: m.cfg.Host}
	if m.cfg.Port == 465 {
		conn = tls.Client(conn, tlsConfig)
	}

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		stop()
		conn.Close()
		return nil, nil, fmt.Errorf("smtp handshake: %w", err)
	}

	if m.cfg.Port != 465 {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(tlsConfig); err != nil {
				stop()
				c.Close()
				return nil, nil, fmt.Errorf("starttls: %w", err)
			}
		}
	}
	return c, stop, nil
}

func (m *Mailer) auth(c *smtp.Client) error {
	if m.cfg.Username == "" {
		return nil
	}
	if err := c.Auth(smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	return nil
}

// formatMessage renders msg as an RFC 5322 message. Messages with
// attachments are sent as multipart/mixed.
func (m *Mailer) formatMessage(msg Message) string {
	var buf bytes.Buffer

	buf.WriteString("From: " + msg.From.String() + "\r\n")
	buf.WriteString("To: " + strings.Join(msg.To, ", ") + "\r\n")
	if msg.ReplyTo != "" {
		buf.WriteString("Reply-To: " + msg.ReplyTo + "\r\n")
	}
	buf.WriteString("Subject: " + mime.QEncoding.Encode("UTF-8", msg.Subject) + "\r\n")
	buf.WriteString("Date: " + m.now().Format(time.RFC1123Z) + "\r\n")
	buf.WriteString("Message-ID: " + messageID(msg.From.Address) + "\r\n")
	buf.WriteString("MIME-Version: 1.0\r\n")

	if len(msg.Attachments) == 0 {
		buf.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
		buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
		buf.WriteString("\r\n")
		writeQuotedPrintable(&buf, msg.HTML)
		return buf.String()
	}

	writer := multipart.NewWriter(&buf)
	buf.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=%s\r\n", writer.Boundary()))
	buf.WriteString("\r\n")

	htmlHeader := textproto.MIMEHeader{}
	htmlHeader.Set("Content-Type", "text/html; charset=UTF-8")
	htmlHeader.Set("Content-Transfer-Encoding", "quoted-printable")
	htmlPart, _ := writer.CreatePart(htmlHeader)
	writeQuotedPrintable(htmlPart, msg.HTML)

	for _, att := range msg.Attachments {
		attHeader := textproto.MIMEHeader{}
		attHeader.Set("Content-Type", attachmentContentType(att))
		attHeader.Set("Content-Transfer-Encoding", "base64")
		attHeader.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": att.Filename}))

		attPart, _ := writer.CreatePart(attHeader)

		encoded := base64.StdEncoding.EncodeToString(att.Data)
		// Write in 76-character lines per RFC 2045
		for i := 0; i < len(encoded); i += 76 {
			end := min(i+76, len(encoded))
			attPart.Write([]byte(encoded[i:end] + "\r\n"))
		}
	}

	writer.Close()
	return buf.String()
}

func writeQuotedPrintable(w io.Writer, s string) {
	qp := quotedprintable.NewWriter(w)
	qp.Write([]byte(s))
	qp.Close()
}

func messageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = from[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

// attachmentContentType keeps any parameters the uploader declared and adds
// the file name.
func attachmentContentType(att Attachment) string {
	mediaType, params, err := mime.ParseMediaType(att.ContentType)
	if err != nil {
		mediaType, params = "application/octet-stream", map[string]string{}
	}
	params["name"] = att.Filename
	return mime.FormatMediaType(mediaType, params)
}
