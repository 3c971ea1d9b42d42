package dimensions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan_RoomWithMillimetreDimensions(t *testing.T) {
	text := Normalize("Kitchen\n4200 x 3100")

	got := Scan(text)
	require.Len(t, got, 1)
	assert.Equal(t, "kitchen", got[0].Room)
	assert.Equal(t, 4.2, got[0].LengthM)
	assert.Equal(t, 3.1, got[0].WidthM)
	assert.Equal(t, 13.02, got[0].AreaSqm)
	assert.Equal(t, ScanConfidence, got[0].Confidence)
	assert.NotEmpty(t, got[0].RawText)
}

func TestScan_ImplausibleDimensionsDiscarded(t *testing.T) {
	// 15000 is too large for a millimetre reading and far too large for
	// metres, so the whole pair is dropped rather than half-converted.
	text := Normalize("Bedroom 1\n3500 x 15000")

	got := Scan(text)
	assert.Empty(t, got)
}

func TestScan_AliasesCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"lounge", "Lounge 4.5 x 3.2", "living_room"},
		{"sitting room", "Sitting Room 4.5 x 3.2", "living_room"},
		{"kitchen diner", "Kitchen/Diner 5.8 x 3.0", "kitchen_diner"},
		{"master bed", "Master Bed 4.0 x 3.6", "master_bedroom"},
		{"numbered bedroom", "Bedroom 2 3.4 x 2.8", "bedroom_2"},
		{"bare bedroom", "Bedroom 3.4 x 2.8", "bedroom_1"},
		{"en-suite", "En-Suite 2.2 x 1.6", "ensuite"},
		{"cloakroom", "Cloakroom 1.8 x 1.1", "wc"},
		{"office", "Office 3.0 x 2.5", "study"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Scan(Normalize(tt.line))
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Room)
		})
	}
}

func TestScan_FirstMentionWins(t *testing.T) {
	text := Normalize("Kitchen 4.2 x 3.1\n\n\nKitchen 9.9 x 9.9")

	got := Scan(text)
	require.Len(t, got, 1)
	assert.Equal(t, 4.2, got[0].LengthM)
	assert.Equal(t, 3.1, got[0].WidthM)
}

func TestScan_MultipleRooms(t *testing.T) {
	text := Normalize(`Ground Floor

Living Room 4.8 x 3.6

Kitchen 4200mm x 3100mm

Garage 5.5m x 2.8m
`)

	got := Scan(text)
	require.Len(t, got, 3)
	byRoom := map[string]Extraction{}
	for _, e := range got {
		byRoom[e.Room] = e
	}
	assert.Equal(t, 17.28, byRoom["living_room"].AreaSqm)
	assert.Equal(t, 13.02, byRoom["kitchen"].AreaSqm)
	assert.Equal(t, 15.4, byRoom["garage"].AreaSqm)
}

func TestScan_DimensionOnAdjacentLine(t *testing.T) {
	text := Normalize("Utility\n2.1 x 1.8")

	got := Scan(text)
	require.Len(t, got, 1)
	assert.Equal(t, "utility", got[0].Room)
}

func TestScan_RoomWithoutDimensions(t *testing.T) {
	got := Scan(Normalize("Bathroom\n\nNo measurements shown"))
	assert.Empty(t, got)
}

func TestScan_Empty(t *testing.T) {
	assert.Nil(t, Scan(""))
	assert.Nil(t, Scan("   \n  "))
}

func TestScan_SpelledMetres(t *testing.T) {
	got := Scan("Dining Room 4.1 metres by 3.3 metres")
	require.Len(t, got, 1)
	assert.Equal(t, "dining_room", got[0].Room)
	assert.Equal(t, 4.1, got[0].LengthM)
	assert.Equal(t, 3.3, got[0].WidthM)
}
