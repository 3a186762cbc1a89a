package detect

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/clipcraft/internal/logging"
	"github.com/kikiluvv/clipcraft/internal/tracker"
)

// maxResponse bounds a single reply from the worker.
const maxResponse = 16 << 20

// ErrWorkerClosed is returned after Close or when a dead worker cannot be
// restarted.
var ErrWorkerClosed = errors.New("detector worker closed")

// pipes is one running worker process and its two streams.
type pipes struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	data  io.ReadCloser
}

func (p *pipes) close() error {
	p.stdin.Close()
	p.data.Close()
	if p.cmd == nil {
		return nil
	}
	return p.cmd.Wait()
}

// Worker runs detection in an external process. Frames are sent on the
// child's stdin as [uint32 length][PNG]; replies come back on FD 3 as
// [uint32 length][JSON]. One request is in flight at a time.
type Worker struct {
	logger  zerolog.Logger
	command []string

	mu     sync.Mutex
	conn   *pipes
	closed bool
}

// NewWorker starts command and returns a detector that talks to it. A worker
// that dies or times out is restarted on the next frame.
func NewWorker(logger zerolog.Logger, command []string) (*Worker, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("worker command cannot be empty")
	}
	w := &Worker{
		logger:  logging.Component(logger, "detect-worker"),
		command: command,
	}
	conn, err := w.spawn()
	if err != nil {
		return nil, err
	}
	w.conn = conn
	return w, nil
}

func (w *Worker) spawn() (*pipes, error) {
	// side channel for replies so the child's stdout stays free for logs
	r, wr, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}

	cmd := exec.Command(w.command[0], w.command[1:]...)
	cmd.ExtraFiles = []*os.File{wr}
	cmd.Stderr = w.logger.With().Str("stream", "stderr").Logger()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		wr.Close()
		r.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		wr.Close()
		r.Close()
		return nil, fmt.Errorf("failed to start worker %q: %w", w.command[0], err)
	}
	wr.Close()

	w.logger.Debug().Int("pid", cmd.Process.Pid).Strs("command", w.command).Msg("worker started")
	return &pipes{cmd: cmd, stdin: stdin, data: r}, nil
}

// Communicate sends one framed request and reads one framed reply.
func (w *Worker) Communicate(ctx context.Context, payload []byte) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrWorkerClosed
	}
	if w.conn == nil {
		if len(w.command) == 0 {
			return nil, ErrWorkerClosed
		}
		conn, err := w.spawn()
		if err != nil {
			return nil, err
		}
		w.conn = conn
	}

	type reply struct {
		body []byte
		err  error
	}
	done := make(chan reply, 1)
	conn := w.conn
	go func() {
		body, err := exchange(conn, payload)
		done <- reply{body, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			w.reset()
			return nil, fmt.Errorf("worker exchange failed: %w", r.err)
		}
		return r.body, nil
	case <-ctx.Done():
		// the reply may still arrive later, so the stream is out of sync
		w.reset()
		return nil, ctx.Err()
	}
}

func exchange(conn *pipes, payload []byte) ([]byte, error) {
	if err := binary.Write(conn.stdin, binary.BigEndian, uint32(len(payload))); err != nil {
		return nil, err
	}
	if _, err := conn.stdin.Write(payload); err != nil {
		return nil, err
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(conn.data, header); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(header)
	if n > maxResponse {
		return nil, fmt.Errorf("reply of %d bytes exceeds limit", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(conn.data, body); err != nil {
		return nil, err
	}
	return body, nil
}

// reset drops the current process. Callers hold mu.
func (w *Worker) reset() {
	if w.conn == nil {
		return
	}
	conn := w.conn
	w.conn = nil
	if conn.cmd != nil && conn.cmd.Process != nil {
		conn.cmd.Process.Kill()
	}
	if err := conn.close(); err != nil {
		w.logger.Debug().Err(err).Msg("worker exited")
	}
}

// Detect implements tracker.Detector. The frame is contrast-normalized
// before it is sent.
func (w *Worker) Detect(ctx context.Context, img image.Image) ([]tracker.Detection, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, Equalize(img)); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	body, err := w.Communicate(ctx, buf.Bytes())
	if err != nil {
		return nil, err
	}
	return DecodeReply(body)
}

// Close stops the worker process.
func (w *Worker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.conn == nil {
		return nil
	}
	conn := w.conn
	w.conn = nil
	return conn.close()
}

type wireDetection struct {
	Box  [4]float64   `json:"box"`
	Kind tracker.Kind `json:"kind"`
}

type wireError struct {
	Error string `json:"error"`
}

// DecodeReply parses a worker reply: either a JSON array of
// {"box":[x,y,w,h],"kind":"frontal"} objects or {"error":"..."}.
func DecodeReply(body []byte) ([]tracker.Detection, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("empty worker reply")
	}
	if body[0] == '{' {
		var we wireError
		if err := json.Unmarshal(body, &we); err != nil {
			return nil, fmt.Errorf("malformed worker error: %w", err)
		}
		return nil, fmt.Errorf("worker: %s", we.Error)
	}

	var wire []wireDetection
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("malformed worker reply: %w", err)
	}
	dets := make([]tracker.Detection, 0, len(wire))
	for _, d := range wire {
		dets = append(dets, tracker.Detection{
			Box:  tracker.Rect{X: d.Box[0], Y: d.Box[1], Width: d.Box[2], Height: d.Box[3]},
			Kind: d.Kind,
		})
	}
	return dets, nil
}
