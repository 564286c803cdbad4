package connectors

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	// TLSHandshakeTimeout: единственный встроенный таймаут в агенте.
	TLSHandshakeTimeout = 10 * time.Second
	// maxAckSize: разумный предел ответа коллектора.
	maxAckSize = 1 << 20
	// livenessWindow: сколько ждет проверка соединения перед записью.
	livenessWindow = time.Millisecond
	readBufferSize = 64 << 10
)

// StreamTransport: надежный поток (TCP или TLS поверх TCP).
// Кадр: 4 байта длины big-endian, затем тело сообщения.
type StreamTransport struct {
	opts   TransportOptions
	name   string
	dial   DialFunc
	logger *zap.Logger

	conn  net.Conn
	rd    *bufio.Reader
	state ConnState
}

// NewStreamTransport: вариант tcp.
func NewStreamTransport(opts TransportOptions, logger *zap.Logger) *StreamTransport {
	return &StreamTransport{
		opts:   opts,
		name:   "tcp",
		dial:   opts.Dial,
		logger: logger.Named("tcp"),
	}
}

// NewTLSTransport создает вариант tls: тот же кадр, рукопожатие ограничено TLSHandshakeTimeout.
func NewTLSTransport(opts TransportOptions, logger *zap.Logger) *StreamTransport {
	t := NewStreamTransport(opts, logger)
	t.name = "tls"
	t.logger = logger.Named("tls")
	t.dial = tlsDialer(opts.Dial, opts.TLS)
	return t
}

func tlsDialer(dial DialFunc, cfg *tls.Config) DialFunc {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		raw, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		hsCtx, cancel := context.WithTimeout(ctx, TLSHandshakeTimeout)
		defer cancel()

		conn := tls.Client(raw, cfg)
		if err := conn.HandshakeContext(hsCtx); err != nil {
			_ = raw.Close()
			return nil, fmt.Errorf("tls handshake with %s: %w", addr, err)
		}
		return conn, nil
	}
}

func (t *StreamTransport) Name() string { return t.name }

func (t *StreamTransport) Connected() bool { return t.state == StateUp }

// Send: ровно одна попытка. Любая ошибка записи или ack переводит дескриптор в DOWN,
// переподключение будет только в следующем цикле.
func (t *StreamTransport) Send(ctx context.Context, payload []byte) error {
	if err := t.ensureConnected(ctx); err != nil {
		return &DeliveryError{Stage: StageConnect, Cause: err}
	}

	// 1. Длина и тело уходят одной записью, запись должна пройти целиком
	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[4:], payload)

	if dl, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(dl)
		defer t.conn.SetWriteDeadline(time.Time{})
	}
	if err := writeFull(t.conn, frame); err != nil {
		t.logger.Warn("short write to collector, dropping connection", zap.Error(err))
		t.markDown()
		return &DeliveryError{Stage: StageWrite, Cause: err}
	}

	// 2. Ответ коллектора (часть той же попытки, не повтор)
	if t.opts.Ack {
		if err := t.readAck(); err != nil {
			t.logger.Warn("collector ack failed, dropping connection", zap.Error(err))
			t.markDown()
			return &DeliveryError{Stage: StageAck, Cause: err}
		}
	}
	return nil
}

func (t *StreamTransport) ensureConnected(ctx context.Context) error {
	// Проверка в этом цикле: закрытое коллектором соединение не считаем живым
	if t.state == StateUp && !t.alive() {
		t.logger.Info("collector closed the connection, reconnecting")
		t.markDown()
	}
	if t.state == StateUp {
		return nil
	}

	conn, err := dialCandidates(ctx, t.opts.Resolver, t.dial, "tcp", t.opts.Host, t.opts.Port)
	if err != nil {
		t.logger.Warn("could not connect to riemann",
			zap.String("host", t.opts.Host),
			zap.Int("port", t.opts.Port),
			zap.Error(err),
		)
		return err
	}

	t.conn = conn
	t.rd = bufio.NewReaderSize(conn, readBufferSize)
	t.state = StateUp
	t.logger.Info("connected to riemann", zap.String("addr", conn.RemoteAddr().String()))
	return nil
}

// alive читает из сокета с коротким дедлайном. Таймаут значит "соединение живо",
// EOF или сброс значат, что коллектор его закрыл. Riemann отвечает на каждое
// сообщение, поэтому ответы, не прочитанные в режиме без ack, вычитываются
// целыми кадрами. Обрывок кадра остается в буфере до следующей проверки.
func (t *StreamTransport) alive() bool {
	if err := t.conn.SetReadDeadline(time.Now().Add(livenessWindow)); err != nil {
		return false
	}
	defer t.conn.SetReadDeadline(time.Time{})

	for {
		body, err := t.peekFrame()
		if err != nil {
			return errors.Is(err, os.ErrDeadlineExceeded)
		}
		if err := checkAck(body); err != nil {
			t.logger.Warn("collector rejected an earlier event", zap.Error(err))
		}
		if _, err := t.rd.Discard(4 + len(body)); err != nil {
			return false
		}
	}
}

// peekFrame возвращает тело следующего кадра, не снимая его с буфера.
func (t *StreamTransport) peekFrame() ([]byte, error) {
	hdr, err := t.rd.Peek(4)
	if err != nil {
		return nil, err
	}
	size := int(binary.BigEndian.Uint32(hdr))
	if size > t.rd.Size()-4 {
		return nil, fmt.Errorf("ack of %d bytes exceeds read buffer", size)
	}
	frame, err := t.rd.Peek(4 + size)
	if err != nil {
		return nil, err
	}
	return frame[4:], nil
}

func (t *StreamTransport) readAck() error {
	if err := t.conn.SetReadDeadline(time.Now().Add(t.opts.AckTimeout)); err != nil {
		return err
	}
	defer t.conn.SetReadDeadline(time.Time{})

	var hdr [4]byte
	if _, err := io.ReadFull(t.rd, hdr[:]); err != nil {
		return fmt.Errorf("read ack header: %w", err)
	}
	size := binary.BigEndian.Uint32(hdr[:])
	if size > maxAckSize {
		return fmt.Errorf("ack of %d bytes exceeds limit", size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(t.rd, body); err != nil {
		return fmt.Errorf("read ack body: %w", err)
	}
	return checkAck(body)
}

func (t *StreamTransport) markDown() {
	if t.conn != nil {
		_ = t.conn.Close()
	}
	t.conn = nil
	t.rd = nil
	t.state = StateDown
}

// Close закрывает соединение при остановке агента.
func (t *StreamTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	t.rd = nil
	t.state = StateDown
	return err
}

// String: адрес коллектора для логов.
func (t *StreamTransport) String() string {
	return t.name + "://" + net.JoinHostPort(t.opts.Host, strconv.Itoa(t.opts.Port))
}

func writeFull(w io.Writer, b []byte) error {
	n, err := w.Write(b)
	if err != nil {
		return err
	}
	if n != len(b) {
		return io.ErrShortWrite
	}
	return nil
}
