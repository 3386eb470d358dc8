package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAttendanceStatus(t *testing.T) {
	status, err := ParseAttendanceStatus(" late ")
	require.NoError(t, err)
	assert.Equal(t, AttendanceStatusLate, status)

	_, err = ParseAttendanceStatus("sick")
	assert.Error(t, err)
}

func TestAttendanceRecordFlags(t *testing.T) {
	assert.True(t, AttendanceRecord{Status: AttendanceStatusLate}.IsLate())
	assert.True(t, AttendanceRecord{Status: AttendanceStatusPresent, Late: true}.IsLate())
	assert.False(t, AttendanceRecord{Status: AttendanceStatusPresent}.IsLate())
	assert.True(t, AttendanceRecord{Status: AttendanceStatusAbsent, Excused: true}.IsExcused())

	_, ok := AttendanceRecord{Date: "2024-02-30"}.Day()
	assert.False(t, ok)
}

func TestExportParamsScan(t *testing.T) {
	params := ExportParams{Filter: ReportFilter{LastDays: 7}, Sort: ReportSort{Field: "name", Order: "asc"}}
	value, err := params.Value()
	require.NoError(t, err)

	var fromText, fromBytes ExportParams
	require.NoError(t, fromText.Scan(value))
	require.NoError(t, fromBytes.Scan([]byte(value.(string))))
	assert.Equal(t, params, fromText)
	assert.Equal(t, params, fromBytes)

	assert.Error(t, fromText.Scan(42))
}

func TestStudentFullName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", Student{FirstName: "Ada", LastName: "Lovelace"}.FullName())
	assert.Equal(t, "Lovelace", Student{LastName: "Lovelace"}.FullName())
}
