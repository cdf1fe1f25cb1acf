package schema

////////////////////////////////////////////////////////////////////////////////
// TYPES

const (
	SchemaName = "chunker"

	// ChunkKeyPrefix prefixes the key of each stored chunk, followed by its index
	ChunkKeyPrefix = "chunk_"

	// ArtifactPrefix prefixes the file name of every assembled artifact
	ArtifactPrefix = "Attachment_"

	// Multipart form field names for a chunk upload
	FieldFileName    = "fileName"
	FieldFileSize    = "fileSize"
	FieldChunkIndex  = "chunkIndex"
	FieldTotalChunks = "totalChunks"
	FieldChunkId     = "chunkId"
	FieldReferenceId = "referenceId"
	FieldFolderId    = "folderId"
	FieldChunk       = "chunk"

	// MaxChunkIdLength is the maximum length of an upload identifier
	MaxChunkIdLength = 128

	// AttrLastModified is the metadata key used to store the object modification time.
	// S3 normalizes metadata keys to lowercase, so we use lowercase for consistency.
	AttrLastModified = "last-modified"
)
