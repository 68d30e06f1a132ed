package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNetRevenue(t *testing.T) {
	assert.Equal(t, "150.5", NetRevenue(dec("200.50"), dec("50")).String())
	assert.True(t, NetRevenue(dec("10"), dec("25")).IsZero())
	assert.Equal(t, "33.33", NetRevenue(dec("33.333"), decimal.Zero).String())
}

func TestStartOfDay(t *testing.T) {
	at := time.Date(2026, 10, 17, 18, 45, 12, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC), startOfDay(at))
}
