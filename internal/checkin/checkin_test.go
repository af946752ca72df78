package checkin

import (
	"net/url"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const attendeeHex = "0x0000000000000000000000000000000000000B0B"

func ptr(v uint64) *uint64 { return &v }

func TestResolve(t *testing.T) {
	attendee := common.HexToAddress(attendeeHex)

	tests := []struct {
		name   string
		query  string
		stored *uint64
		source Source
		want   Target
	}{
		{
			name:  "event id only is self check-in",
			query: "eventId=3",
			want:  Target{Mode: ModeSelf, EventID: 3},
		},
		{
			name:  "event id zero is valid",
			query: "eventId=0",
			want:  Target{Mode: ModeSelf, EventID: 0},
		},
		{
			name:  "event id and attendee is scan mode",
			query: "eventId=3&attendee=" + attendeeHex,
			want:  Target{Mode: ModeScan, EventID: 3, Attendee: &attendee},
		},
		{
			name:  "malformed attendee is treated as absent",
			query: "eventId=3&attendee=0x123",
			want:  Target{Mode: ModeSelf, EventID: 3},
		},
		{
			name:   "malformed event id is invalid without fallback",
			query:  "eventId=abc",
			stored: ptr(9),
			want:   Target{Mode: ModeInvalid, Reason: ReasonInvalidLink},
		},
		{
			name:  "negative event id is invalid",
			query: "eventId=-1",
			want:  Target{Mode: ModeInvalid, Reason: ReasonInvalidLink},
		},
		{
			name:  "attendee without event id is invalid",
			query: "attendee=" + attendeeHex,
			want:  Target{Mode: ModeInvalid, Reason: ReasonInvalidLink},
		},
		{
			name:   "no parameters falls back to stored id",
			stored: ptr(5),
			want:   Target{Mode: ModeStored, EventID: 5},
		},
		{
			name: "no parameters and nothing stored",
			want: Target{Mode: ModeInvalid, Reason: ReasonNoEvent},
		},
		{
			name:   "stored source ignores the query",
			query:  "eventId=3",
			source: SourceStored,
			want:   Target{Mode: ModeInvalid, Reason: ReasonNoEvent},
		},
		{
			name:   "stored source uses the persisted id",
			query:  "eventId=3&attendee=" + attendeeHex,
			stored: ptr(0),
			source: SourceStored,
			want:   Target{Mode: ModeStored, EventID: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			source := tt.source
			if source == "" {
				source = SourceQuery
			}
			assert.Equal(t, tt.want, Resolve(q, tt.stored, source))
		})
	}
}

func TestURL_RoundTripsThroughResolve(t *testing.T) {
	attendee := common.HexToAddress(attendeeHex)

	link := URL("https://tickets.example/", 7, &attendee)
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/checkin", u.Path)

	got := Resolve(u.Query(), nil, SourceQuery)
	assert.Equal(t, ModeScan, got.Mode)
	assert.Equal(t, uint64(7), got.EventID)
	assert.Equal(t, attendee, *got.Attendee)

	assert.Equal(t, "https://tickets.example/checkin?eventId=7", URL("https://tickets.example", 7, nil))
}

func TestParseSourceAndGuardOrder(t *testing.T) {
	s, err := ParseSource("")
	require.NoError(t, err)
	assert.Equal(t, SourceQuery, s)
	s, err = ParseSource("Stored")
	require.NoError(t, err)
	assert.Equal(t, SourceStored, s)
	_, err = ParseSource("cookie")
	assert.Error(t, err)

	g, err := ParseGuardOrder("")
	require.NoError(t, err)
	assert.Equal(t, ParamsFirst, g)
	g, err = ParseGuardOrder("wallet-first")
	require.NoError(t, err)
	assert.Equal(t, WalletFirst, g)
	_, err = ParseGuardOrder("random")
	assert.Error(t, err)
}
