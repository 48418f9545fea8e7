package wire

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, typ PacketType, payload any, out any) Frame {
	t.Helper()

	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	_, err := WriteJSONFrame(bw, typ, payload)
	require.NoError(t, err)
	require.NoError(t, bw.Flush())

	frame, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, typ, frame.Type)

	require.NoError(t, frame.DecodeJSON(out))
	return frame
}

func TestWriteReadFrameRoundTripsGreeting(t *testing.T) {
	in := GreetingPayload{Name: "node-a", Version: "1.0.0"}
	var out GreetingPayload
	roundTrip(t, Greeting, in, &out)
	require.Equal(t, in, out)
}

func TestWriteReadFrameRoundTripsSubscribe(t *testing.T) {
	in := SubscribePayload{TableName: "orders"}
	var out SubscribePayload
	roundTrip(t, Subscribe, in, &out)
	require.Equal(t, in, out)
}

func TestWriteReadFrameRoundTripsDeleteRows(t *testing.T) {
	in := DeleteRowsPayload{
		TableName: "orders",
		Rows:      map[string][]string{"p1": {"r1", "r2"}},
	}
	var out DeleteRowsPayload
	roundTrip(t, DeleteRows, in, &out)
	require.Equal(t, in, out)
}

func TestWriteReadFrameRoundTripsUpdatePartitionsExpirationTime(t *testing.T) {
	expires := "2025-03-12T10:55:46"
	in := UpdatePartitionsExpirationTimePayload{
		TableName: "orders",
		Partitions: []PartitionExpires{
			{PartitionKey: "p1", Expires: &expires},
			{PartitionKey: "p2", Expires: nil},
		},
	}
	var out UpdatePartitionsExpirationTimePayload
	roundTrip(t, UpdatePartitionsExpirationTime, in, &out)
	require.Equal(t, in, out)
}

func TestWriteReadFrameRoundTripsConfirmation(t *testing.T) {
	in := ConfirmationPayload{ID: "abc-123"}
	var out ConfirmationPayload
	roundTrip(t, Confirmation, in, &out)
	require.Equal(t, in, out)
}

func TestReadFrameMultiplePacketsInSequence(t *testing.T) {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)

	_, err := WriteJSONFrame(bw, Ping, struct{}{})
	require.NoError(t, err)
	_, err = WriteJSONFrame(bw, Pong, struct{}{})
	require.NoError(t, err)
	require.NoError(t, bw.Flush())

	first, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, Ping, first.Type)

	second, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, Pong, second.Type)
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(byte(Ping))
	buf.Write([]byte{0xff, 0xff, 0xff, 0xff})

	_, err := ReadFrame(&buf)
	require.Error(t, err)
}

func TestReadFrameReturnsErrorOnTruncatedHeader(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(byte(Ping))
	buf.Write([]byte{0x01, 0x00})

	_, err := ReadFrame(&buf)
	require.Error(t, err)
}

func TestPacketTypeConstantsMatchWireOrder(t *testing.T) {
	require.Equal(t, PacketType(0), Ping)
	require.Equal(t, PacketType(1), Pong)
	require.Equal(t, PacketType(2), Greeting)
	require.Equal(t, PacketType(3), Subscribe)
	require.Equal(t, PacketType(4), InitTable)
	require.Equal(t, PacketType(5), InitPartition)
	require.Equal(t, PacketType(6), UpdateRows)
	require.Equal(t, PacketType(7), DeleteRows)
	require.Equal(t, PacketType(8), Error)
	require.Equal(t, PacketType(9), GreetingFromNode)
	require.Equal(t, PacketType(10), SubscribeAsNode)
	require.Equal(t, PacketType(11), TablesNotFound)
	require.Equal(t, PacketType(12), Unsubscribe)
	require.Equal(t, PacketType(13), CompressedPayload)
	require.Equal(t, PacketType(14), UpdatePartitionsLastReadTime)
	require.Equal(t, PacketType(15), UpdateRowsLastReadTime)
	require.Equal(t, PacketType(16), UpdatePartitionsExpirationTime)
	require.Equal(t, PacketType(17), UpdateRowsExpirationTime)
	require.Equal(t, PacketType(18), Confirmation)
}
