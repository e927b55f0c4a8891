// cmd/tenma-bridge/main_test.go
package main

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/tenma-bridge/internal/psu"
	"github.com/tamzrod/tenma-bridge/internal/psu/psutest"
	"github.com/tamzrod/tenma-bridge/internal/serializer"
	"github.com/tamzrod/tenma-bridge/internal/state"
	"github.com/tamzrod/tenma-bridge/internal/status"
)

func newTestDriver(t *testing.T, dev *psutest.Device) *psu.Driver {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	q := serializer.New(dev, serializer.Config{DefaultDwell: time.Millisecond}, log)
	t.Cleanup(q.Close)
	return psu.New(q, state.New(), psu.Config{}, log)
}

func TestIdentifySupply_Accepts(t *testing.T) {
	dev := psutest.New()
	drv := newTestDriver(t, dev)

	id, err := identifySupply(drv, "TENMA")
	require.NoError(t, err)
	assert.Equal(t, psutest.DefaultIdentity, id)
}

func TestIdentifySupply_WrongPrefixAborts(t *testing.T) {
	dev := psutest.New()
	dev.SetIdentity("KORAD KA3005P V5.8")
	drv := newTestDriver(t, dev)

	_, err := identifySupply(drv, "TENMA")
	require.ErrorIs(t, err, psu.ErrIdentificationMismatch)
	assert.Equal(t, psu.CodeIdentificationMismatch, status.ErrorCode(err))
	assert.Equal(t, []string{"*IDN?"}, dev.Calls())
}

func TestIdentifySupply_SilentDeviceAborts(t *testing.T) {
	dev := psutest.New()
	dev.Silence("*IDN?")
	drv := newTestDriver(t, dev)

	_, err := identifySupply(drv, "TENMA")
	assert.ErrorIs(t, err, psu.ErrIdentificationMismatch)
}
