package ingest_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/soclab/quell/domain/entity"
	"github.com/soclab/quell/ingest"
)

func TestDeduperSeen(t *testing.T) {
	d := ingest.NewDeduper(time.Minute)

	first := &entity.Indicator{
		Source: ingest.SourceEDR,
		Type:   entity.IndicatorTypeHash,
		Value:  "deadbeef",
		Asset:  "ws-042",
	}
	assert.False(t, d.Seen(first))
	assert.True(t, d.Seen(first))

	// a different asset is a different observation
	other := &entity.Indicator{
		Source: ingest.SourceEDR,
		Type:   entity.IndicatorTypeHash,
		Value:  "deadbeef",
		Asset:  "ws-043",
	}
	assert.False(t, d.Seen(other))
}
