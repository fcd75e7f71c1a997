package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/netutil"
)

// maxMessageSize caps a single length-prefixed message.
const maxMessageSize = 64 << 20

// SocketClient talks to a running socket server
type SocketClient struct {
	conn net.Conn
}

// NewSocketClient connects to a running socket server
func NewSocketClient(socketPath string) (*SocketClient, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket server at %s: %w", socketPath, err)
	}

	return &SocketClient{conn: conn}, nil
}

// Close closes the connection to the socket server
func (sc *SocketClient) Close() error {
	if sc.conn != nil {
		return sc.conn.Close()
	}
	return nil
}

// Execute sends a JSON command and returns the raw JSON response
func (sc *SocketClient) Execute(cmdJSON string) (string, error) {
	if err := writeMessage(sc.conn, []byte(cmdJSON)); err != nil {
		return "", err
	}

	data, err := readMessage(sc.conn)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SocketServer serves a StreamEditorCore over a Unix domain socket
type SocketServer struct {
	socketPath     string
	core           *StreamEditorCore
	maxConnections int
	logger         *zap.Logger
	listener       net.Listener
	done           chan struct{}
	stopped        chan struct{} // Closed when server has fully shut down
	stopOnce       sync.Once
}

// NewSocketServer creates a new socket server instance. maxConnections <= 0
// means no limit.
func NewSocketServer(socketPath string, core *StreamEditorCore, maxConnections int, logger *zap.Logger) *SocketServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SocketServer{
		socketPath:     socketPath,
		core:           core,
		maxConnections: maxConnections,
		logger:         logger,
		done:           make(chan struct{}),
		stopped:        make(chan struct{}),
	}
}

// Start begins listening on the Unix domain socket
func (ss *SocketServer) Start() error {
	// Remove existing socket file if it exists
	if err := os.Remove(ss.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", ss.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket %s: %w", ss.socketPath, err)
	}
	if ss.maxConnections > 0 {
		listener = netutil.LimitListener(listener, ss.maxConnections)
	}
	ss.listener = listener

	ss.logger.Info("socket server listening",
		zap.String("socket", ss.socketPath),
		zap.Int("max_connections", ss.maxConnections))

	go ss.acceptConnections()

	return nil
}

// acceptConnections accepts incoming connections (multiple clients supported)
func (ss *SocketServer) acceptConnections() {
	for {
		conn, err := ss.listener.Accept()
		if err != nil {
			select {
			case <-ss.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			ss.logger.Warn("error accepting connection", zap.Error(err))
			continue
		}

		go ss.handleClient(conn)
	}
}

// handleClient answers commands from one client until it disconnects
func (ss *SocketServer) handleClient(conn net.Conn) {
	defer conn.Close()

	for {
		data, err := readMessage(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				ss.logger.Warn("error reading from client", zap.Error(err))
			}
			return
		}

		response := ss.core.ExecuteCommand(string(data))

		if err := writeMessage(conn, []byte(response)); err != nil {
			ss.logger.Warn("error writing to client", zap.Error(err))
			return
		}
	}
}

// Stop gracefully shuts down the socket server
func (ss *SocketServer) Stop() error {
	var err error
	ss.stopOnce.Do(func() {
		close(ss.done)
		if ss.listener != nil {
			err = ss.listener.Close()
		}
		os.Remove(ss.socketPath)
		close(ss.stopped)
		ss.logger.Info("socket server stopped", zap.String("socket", ss.socketPath))
	})
	return err
}

// Wait blocks until the server is fully shut down
func (ss *SocketServer) Wait() {
	<-ss.stopped
}

// ============================================================================
// Length-Prefixed Protocol (4-byte big-endian length + data)
// ============================================================================

// readMessage reads a single length-prefixed message
func readMessage(r io.Reader) ([]byte, error) {
	lengthBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lengthBuf); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(lengthBuf)
	if length > maxMessageSize {
		return nil, fmt.Errorf("message of %d bytes exceeds limit of %d", length, maxMessageSize)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}

	return data, nil
}

// writeMessage writes a single length-prefixed message
func writeMessage(w io.Writer, data []byte) error {
	lengthBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lengthBuf, uint32(len(data)))

	if _, err := w.Write(lengthBuf); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return nil
}
