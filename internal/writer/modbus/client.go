// internal/writer/modbus/client.go
package modbus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// MaxRegistersPerWrite is the FC16 quantity limit.
const MaxRegistersPerWrite = 123

// EndpointClient holds one Modbus TCP connection to a register server.
// Requests are serialized: the unit id lives on the shared handler.
type EndpointClient struct {
	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	client  modbus.Client
}

type Config struct {
	Endpoint string
	Timeout  time.Duration

	// Lazy skips the initial dial; the handler connects on first write.
	Lazy bool
}

func NewEndpointClient(cfg Config) (*EndpointClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("writer modbus: endpoint required")
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	if cfg.Timeout > 0 {
		h.Timeout = cfg.Timeout
	}

	if !cfg.Lazy {
		if err := h.Connect(); err != nil {
			return nil, fmt.Errorf("writer modbus: connect %s: %w", cfg.Endpoint, err)
		}
	}

	return &EndpointClient{
		handler: h,
		client:  modbus.NewClient(h),
	}, nil
}

func (c *EndpointClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Close()
}

// WriteRegisters writes holding registers with FC16, split into
// MaxRegistersPerWrite chunks. It stops at the first failed chunk.
func (c *EndpointClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handler.SlaveId = unitID

	for off := 0; off < len(regs); off += MaxRegistersPerWrite {
		end := off + MaxRegistersPerWrite
		if end > len(regs) {
			end = len(regs)
		}
		chunk := regs[off:end]
		start := addr + uint16(off)

		if _, err := c.client.WriteMultipleRegisters(start, uint16(len(chunk)), encode(chunk)); err != nil {
			return fmt.Errorf("writer modbus: unit=%d addr=%d qty=%d: %w", unitID, start, len(chunk), err)
		}
	}
	return nil
}

// encode lays registers out big-endian, high byte first.
func encode(regs []uint16) []byte {
	out := make([]byte, 0, 2*len(regs))
	for _, r := range regs {
		out = append(out, byte(r>>8), byte(r))
	}
	return out
}
