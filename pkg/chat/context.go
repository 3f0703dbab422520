package chat

import (
	"fmt"
	"sort"
	"strings"
)

// Column describes one column of a database table
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Schema maps database name -> table name -> columns
type Schema map[string]map[string][]Column

// FileStatusReady marks an uploaded file whose text extraction finished
const FileStatusReady = "ready"

// UserFile is an uploaded file descriptor as exposed by the context store
type UserFile struct {
	Name         string `json:"name"`
	Content      string `json:"content"`
	Status       string `json:"status"`
	IsAssociated bool   `json:"is_associated"`
}

// SchemaContext is the schema fragment injected into an outgoing request
type SchemaContext struct {
	Markdown    string   `json:"markdown"`
	SourcePaths []string `json:"source_paths"`
}

// FileContext is one injected file payload
type FileContext struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// InjectedContext is the optional structured payload merged into a chat
// request alongside conversation history.
type InjectedContext struct {
	Schemas *SchemaContext         `json:"schemas,omitempty"`
	Files   map[string]FileContext `json:"files,omitempty"`
}

// BuildInjectedContext assembles the auxiliary context for a request. It
// returns nil when no table is selected and no file is associated and ready,
// so serialization omits the field entirely instead of sending an empty
// object the backend would treat as a context-aware request.
func BuildInjectedContext(schema Schema, selectedTables map[string]bool, files []UserFile) *InjectedContext {
	ctx := &InjectedContext{}
	hasContent := false

	selected := selectedTableKeys(selectedTables)
	if schema != nil && len(selected) > 0 {
		var markdown strings.Builder
		markdown.WriteString("Schema for selected tables:\n")

		for _, tableKey := range selected {
			dbName, tableName, ok := strings.Cut(tableKey, ".")
			if !ok {
				continue
			}
			columns, exists := schema[dbName][tableName]
			if !exists {
				continue
			}

			parts := make([]string, 0, len(columns))
			for _, c := range columns {
				parts = append(parts, fmt.Sprintf("%s: %s", c.Name, c.Type))
			}
			fmt.Fprintf(&markdown, "- %s(%s)\n", tableName, strings.Join(parts, ", "))
		}

		ctx.Schemas = &SchemaContext{
			Markdown:    markdown.String(),
			SourcePaths: selected,
		}
		hasContent = true
	}

	for _, file := range files {
		if !file.IsAssociated || file.Status != FileStatusReady || file.Content == "" {
			continue
		}
		if ctx.Files == nil {
			ctx.Files = make(map[string]FileContext)
		}
		ctx.Files[file.Name] = FileContext{
			Type:    "full_content",
			Content: file.Content,
		}
		hasContent = true
	}

	if !hasContent {
		return nil
	}
	return ctx
}

// selectedTableKeys returns the selected "db.table" keys in stable order
func selectedTableKeys(selectedTables map[string]bool) []string {
	keys := make([]string, 0, len(selectedTables))
	for key, selected := range selectedTables {
		if selected {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}
