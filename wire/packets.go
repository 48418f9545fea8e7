// Package wire defines the shapes of the replication packets this store
// emits and consumes, and the length-prefixed JSON framing they travel
// over. Grounded on tcp_packets.rs for the packet-code table; the TCP
// subscriber/publisher that would actually open sockets and drive this
// framing is out of scope (no transport layer is specified), so this
// package only defines payload shapes and the encode/decode helpers
// around them.
package wire

// PacketType identifies the kind of replication packet a frame carries.
type PacketType uint8

const (
	Ping PacketType = iota
	Pong
	Greeting
	Subscribe
	InitTable
	InitPartition
	UpdateRows
	DeleteRows
	Error
	GreetingFromNode
	SubscribeAsNode
	TablesNotFound
	Unsubscribe
	CompressedPayload
	UpdatePartitionsLastReadTime
	UpdateRowsLastReadTime
	UpdatePartitionsExpirationTime
	UpdateRowsExpirationTime
	Confirmation
)

// GreetingPayload is sent by a read replica on connect to identify itself.
type GreetingPayload struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// GreetingFromNodePayload is sent by the master node in reply.
type GreetingFromNodePayload struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	CompressID int    `json:"compressId,omitempty"`
}

// SubscribePayload requests replication of a single table.
type SubscribePayload struct {
	TableName string `json:"tableName"`
}

// SubscribeAsNodePayload requests replication of every table the master
// currently hosts, as a master-to-master subscription.
type SubscribeAsNodePayload struct {
	Location string `json:"location"`
	Compress bool   `json:"compress"`
}

// UnsubscribePayload cancels an earlier Subscribe.
type UnsubscribePayload struct {
	TableName string `json:"tableName"`
}

// InitTablePayload carries a full table snapshot (every partition, every
// row) to a newly subscribed replica.
type InitTablePayload struct {
	TableName string            `json:"tableName"`
	Snapshot  map[string][]byte `json:"-"`
}

// InitPartitionPayload carries a full partition snapshot.
type InitPartitionPayload struct {
	TableName    string `json:"tableName"`
	PartitionKey string `json:"partitionKey"`
	Snapshot     []byte `json:"-"`
}

// UpdateRowsPayload carries one or more inserted/replaced rows.
type UpdateRowsPayload struct {
	TableName string `json:"tableName"`
	Rows      []byte `json:"-"` // raw JSON array of rows
}

// DeleteRowsPayload carries the identities of removed rows.
type DeleteRowsPayload struct {
	TableName string              `json:"tableName"`
	Rows      map[string][]string `json:"rows"` // partitionKey -> rowKeys
}

// ErrorPayload carries a replication-level error message.
type ErrorPayload struct {
	Message string `json:"message"`
}

// TablesNotFoundPayload lists tables a subscriber asked for that the
// master does not host.
type TablesNotFoundPayload struct {
	TableNames []string `json:"tableNames"`
}

// UpdatePartitionsLastReadTimePayload carries a batch of partition
// last-read updates (C8's partitions-last-read sync queue drained).
type UpdatePartitionsLastReadTimePayload struct {
	TableName  string             `json:"tableName"`
	Partitions []PartitionMoment `json:"partitions"`
}

// UpdateRowsLastReadTimePayload carries a batch of row last-read updates.
type UpdateRowsLastReadTimePayload struct {
	TableName string      `json:"tableName"`
	Rows      []RowMoment `json:"rows"`
}

// UpdatePartitionsExpirationTimePayload carries a batch of partition
// expiration updates.
type UpdatePartitionsExpirationTimePayload struct {
	TableName  string              `json:"tableName"`
	Partitions []PartitionExpires `json:"partitions"`
}

// UpdateRowsExpirationTimePayload carries a batch of row expiration
// updates.
type UpdateRowsExpirationTimePayload struct {
	TableName string       `json:"tableName"`
	Rows      []RowExpires `json:"rows"`
}

// ConfirmationPayload acknowledges a prior packet by id.
type ConfirmationPayload struct {
	ID string `json:"id"`
}

// PartitionMoment pairs a partition with a moment, serialized as a
// truncated RFC3339 string over the wire (see microtime.Format).
type PartitionMoment struct {
	PartitionKey string `json:"partitionKey"`
	Moment       string `json:"moment"`
}

// RowMoment pairs a row with a moment.
type RowMoment struct {
	PartitionKey string `json:"partitionKey"`
	RowKey       string `json:"rowKey"`
	Moment       string `json:"moment"`
}

// PartitionExpires pairs a partition with an optional expiration moment.
type PartitionExpires struct {
	PartitionKey string  `json:"partitionKey"`
	Expires      *string `json:"expires"`
}

// RowExpires pairs a row with an optional expiration moment.
type RowExpires struct {
	PartitionKey string  `json:"partitionKey"`
	RowKey       string  `json:"rowKey"`
	Expires      *string `json:"expires"`
}
