package transport

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/corisec/cori/internal/pipeline"
)

// maxFrameBytes bounds a single stdio envelope, guarding against a
// malformed or hostile length prefix asking for an unbounded allocation.
const maxFrameBytes = 16 * 1024 * 1024

// StdioServer serves one principal per process over a length-framed
// stdin/stdout stream, per spec.md §6: each frame is a 4-byte big-endian
// length followed by that many bytes of JSON envelope. The credential is
// fixed for the process lifetime (CORI_TOKEN), unlike HTTPServer where it
// travels per request — there is exactly one agent on the other end of a
// stdio pipe.
type StdioServer struct {
	Pipeline *pipeline.Pipeline
	Logger   *zap.Logger
	Token    string
}

// NewStdioServer constructs a StdioServer bound to p, authenticating every
// frame with token.
func NewStdioServer(p *pipeline.Pipeline, logger *zap.Logger, token string) *StdioServer {
	return &StdioServer{Pipeline: p, Logger: logger, Token: token}
}

// Serve reads frames from r and writes framed responses to w until r
// returns io.EOF or ctx is canceled. It returns nil on a clean EOF.
func (s *StdioServer) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		payload, err := readFrame(r)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("transport: reading stdio frame: %w", err)
		}

		var req request
		if err := json.Unmarshal(payload, &req); err != nil {
			if werr := writeFrame(w, response{Error: &wireError{Kind: "invalid_argument", Message: "malformed request envelope"}}); werr != nil {
				return werr
			}
			continue
		}

		result := s.Pipeline.Handle(ctx, s.Token, req.ToolName, req.Arguments, req.DryRun)
		if result.Err != nil {
			s.Logger.Warn("tool call denied or failed",
				zap.String("tool_name", req.ToolName),
				zap.String("outcome", string(result.Outcome)),
				zap.String("error_kind", string(result.Err.Kind)),
			)
		}
		if err := writeFrame(w, toResponse(result)); err != nil {
			return fmt.Errorf("transport: writing stdio frame: %w", err)
		}
	}
}

func readFrame(r io.Reader) ([]byte, error) {
	var lengthBuf [4]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(lengthBuf[:])
	if length > maxFrameBytes {
		return nil, fmt.Errorf("transport: frame of %d bytes exceeds %d byte limit", length, maxFrameBytes)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func writeFrame(w io.Writer, body response) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("transport: encoding frame: %w", err)
	}
	var lengthBuf [4]byte
	binary.BigEndian.PutUint32(lengthBuf[:], uint32(len(payload)))
	if _, err := w.Write(lengthBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}
