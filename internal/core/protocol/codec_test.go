package protocol

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeusync/reefrush/internal/core/models"
)

func sampleSnapshot() Snapshot {
	set := models.NewSet(4)
	set.Add(models.NewEntity(2, models.KindEnemy, "tuna",
		models.Bounds{X: 10, Y: 20, Width: 30, Height: 30},
		models.Movement{VX: 5, Acceleration: 40, MaxSpeed: 90}))
	player := models.NewEntity(1, models.KindPlayer, "",
		models.Bounds{X: 1, Y: 2, Width: 40, Height: 40},
		models.Movement{DirX: 1, Acceleration: 100, MaxSpeed: 200})
	player.Kill()
	set.Add(player)
	return SnapshotOf(set, 42)
}

func TestCodecsPreserveSnapshots(t *testing.T) {
	for _, name := range []string{CodecJSON, CodecMsgpack} {
		t.Run(name, func(t *testing.T) {
			codec, err := CodecByName(name)
			require.NoError(t, err)
			require.Equal(t, name, codec.Name())

			in := NewSnapshotMessage(sampleSnapshot())
			data, err := codec.Encode(in)
			require.NoError(t, err)

			out, err := codec.Decode(data)
			require.NoError(t, err)
			require.Equal(t, in, out)
			require.Equal(t, models.EntityID(1), out.Snapshot.Entities[0].ID)
			require.True(t, out.Snapshot.Entities[0].Dead)
		})
	}
}

func TestDecodeRejectsEnvelopeWithoutPayload(t *testing.T) {
	_, err := JSONCodec{}.Decode([]byte(`{"type":"snapshot"}`))
	require.ErrorIs(t, err, ErrInvalidMessage)

	_, err = JSONCodec{}.Decode([]byte(`{"type":"teleport"}`))
	require.ErrorIs(t, err, ErrInvalidMessage)

	_, err = JSONCodec{}.Decode([]byte(`not json`))
	require.ErrorIs(t, err, ErrDeserializationFailed)
	require.Equal(t, ErrorCodeDeserializationFailed, GetErrorCode(err))
}

func TestUnknownCodec(t *testing.T) {
	_, err := CodecByName("protobuf")
	require.ErrorIs(t, err, ErrUnknownCodec)
}

func TestEntityStateValidate(t *testing.T) {
	valid := EntityState{ID: 7, Kind: models.KindEnemy, Bounds: models.Bounds{Width: 10, Height: 10}}
	require.NoError(t, valid.Validate())

	cases := map[string]func(s *EntityState){
		"zero id":          func(s *EntityState) { s.ID = 0 },
		"unknown kind":     func(s *EntityState) { s.Kind = 9 },
		"nan bounds":       func(s *EntityState) { s.Bounds.X = math.NaN() },
		"negative size":    func(s *EntityState) { s.Bounds.Width = -1 },
		"infinite heading": func(s *EntityState) { s.Movement.VX = math.Inf(1) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := valid
			mutate(&s)
			require.ErrorIs(t, s.Validate(), ErrInvalidEntityState)
		})
	}
}

func TestToEntityCarriesDeadFlag(t *testing.T) {
	s := EntityState{ID: 3, Kind: models.KindPowerUp, Variant: "growth", Dead: true}
	e := s.ToEntity()
	require.True(t, e.IsDead())
	require.Equal(t, "growth", e.Variant())
	require.Equal(t, s, StateOf(e))
}

func TestErrorCodes(t *testing.T) {
	require.Equal(t, ErrorCodeSuccess, GetErrorCode(nil))
	require.Equal(t, ErrorCodeDialFailed, GetErrorCode(fmt.Errorf("%w: refused", ErrDialFailed)))
	require.Equal(t, ErrorCodeUnknownError, GetErrorCode(errors.New("disk on fire")))

	wrapped := WrapError(ErrConnectionLost, "read")
	require.Equal(t, ErrorCodeConnectionLost, GetErrorCode(fmt.Errorf("session: %w", wrapped)))
	require.ErrorIs(t, wrapped, ErrConnectionLost)
}
