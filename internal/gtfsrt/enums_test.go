package gtfsrt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/livetransit/livetransit/internal/gtfsrt"
)

func TestEnumLookups_KnownValues(t *testing.T) {
	assert.Equal(t, gtfsrt.CauseStrike, gtfsrt.CauseFromCode(4))
	assert.Equal(t, gtfsrt.CauseMedicalEmergency, gtfsrt.CauseFromCode(12))
	assert.Equal(t, gtfsrt.EffectNoService, gtfsrt.EffectFromCode(1))
	assert.Equal(t, gtfsrt.EffectAccessibilityIssue, gtfsrt.EffectFromCode(11))
	assert.Equal(t, gtfsrt.SeverityWarning, gtfsrt.SeverityFromCode(3))
	assert.Equal(t, gtfsrt.ScheduleCanceled, gtfsrt.ScheduleRelationshipFromCode(3))
	assert.Equal(t, gtfsrt.ScheduleDuplicated, gtfsrt.ScheduleRelationshipFromCode(6))
	assert.Equal(t, gtfsrt.StopTimeSkipped, gtfsrt.StopTimeScheduleRelationshipFromCode(1))
	assert.Equal(t, gtfsrt.StatusIncomingAt, gtfsrt.VehicleStopStatusFromCode(0))
	assert.Equal(t, gtfsrt.OccupancyFull, gtfsrt.OccupancyStatusFromCode(5))
	assert.Equal(t, gtfsrt.CongestionStopAndGo, gtfsrt.CongestionLevelFromCode(2))
}

func TestEnumLookups_UnknownValuesFallBack(t *testing.T) {
	assert.Equal(t, gtfsrt.CauseUnknown, gtfsrt.CauseFromCode(0))
	assert.Equal(t, gtfsrt.CauseUnknown, gtfsrt.CauseFromCode(99))
	assert.Equal(t, gtfsrt.EffectUnknown, gtfsrt.EffectFromCode(-5))
	assert.Equal(t, gtfsrt.SeverityUnknown, gtfsrt.SeverityFromCode(42))
	assert.Equal(t, gtfsrt.ScheduleScheduled, gtfsrt.ScheduleRelationshipFromCode(4))
	assert.Equal(t, gtfsrt.StopTimeScheduled, gtfsrt.StopTimeScheduleRelationshipFromCode(77))
	assert.Equal(t, gtfsrt.StatusInTransitTo, gtfsrt.VehicleStopStatusFromCode(9))
	assert.Equal(t, gtfsrt.OccupancyNoDataAvailable, gtfsrt.OccupancyStatusFromCode(100))
	assert.Equal(t, gtfsrt.CongestionUnknown, gtfsrt.CongestionLevelFromCode(-1))
}
