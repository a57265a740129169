package chunk

import "context"

// ContentType represents the type of content in a chunk.
type ContentType string

const (
	ContentTypeCode     ContentType = "code"
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypeText     ContentType = "text"
)

// Chunk is a retrievable, line-bounded unit of a file (§3 Data Model).
// Chunks of one file are contiguous in Index; line ranges are 1-based
// inclusive, and adjacent chunks overlap by a configured number of lines.
type Chunk struct {
	FileID      string
	Index       int // 0-based chunk_index within the file
	Content     string
	ContentType ContentType
	Language    string
	StartLine   int // 1-indexed, inclusive
	EndLine     int // 1-indexed, inclusive
	StartByte   int
	EndByte     int
}

// DocID is the globally-unique identifier of a chunk: (file_id, chunk_index).
type DocID struct {
	FileID string
	Index  int
}

// FileInput is input to the Chunker.
type FileInput struct {
	Path     string // repository-relative path, doubles as FileID
	Content  []byte
	Language string
}

// Chunker is the interface for splitting files into line-bounded chunks.
type Chunker interface {
	// Chunk splits a file into contiguous, overlapping, line-bounded chunks.
	// An empty file yields zero chunks. Returns a *errors.FileTooLargeError
	// if the file exceeds the configured max size.
	Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error)
}

// SymbolType represents the kind of code symbol.
type SymbolType string

const (
	SymbolTypeFunction    SymbolType = "function"
	SymbolTypeMethod      SymbolType = "method"
	SymbolTypeClass       SymbolType = "class"
	SymbolTypeStruct      SymbolType = "struct"
	SymbolTypeInterface   SymbolType = "interface"
	SymbolTypeEnum        SymbolType = "enum"
	SymbolTypeTrait       SymbolType = "trait"
	SymbolTypeType        SymbolType = "type"
	SymbolTypeConstant    SymbolType = "constant"
	SymbolTypeVariable    SymbolType = "variable"
	SymbolTypeModule      SymbolType = "module"
	SymbolTypeField       SymbolType = "field"
	SymbolTypeConstructor SymbolType = "constructor"
)

// Symbol represents a code symbol extracted from parsing. Language is set
// by SymbolExtractor from the parsed tree; FileID is populated by the caller
// (internal/searcher's indexing step) after extraction, since the extractor
// itself only sees one file's tree at a time.
type Symbol struct {
	Name       string
	Type       SymbolType
	FileID     string
	Language   string
	StartLine  int
	EndLine    int
	Signature  string
	DocComment string
}

// Tree represents a parsed AST.
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// Node represents a node in the AST.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Children   []*Node
	HasError   bool
}

// Point represents a position in the source code.
type Point struct {
	Row    uint32 // 0-indexed line number
	Column uint32
}

// LanguageConfig holds configuration for a supported language.
type LanguageConfig struct {
	Name       string
	Extensions []string

	FunctionTypes  []string
	ClassTypes     []string
	InterfaceTypes []string
	MethodTypes    []string
	TypeDefTypes   []string
	ConstantTypes  []string
	VariableTypes  []string

	NameField string
}
