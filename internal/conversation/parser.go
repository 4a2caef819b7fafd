package conversation

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	maxScanTokenSize = 10 * 1024 * 1024 // 10MB
	maxStoredErrors  = 10
)

// Parser reads assistant JSONL transcripts into Conversations.
type Parser struct {
	// Workers bounds concurrent file parsing in ParseDir.
	Workers int
}

// NewParser creates a transcript parser.
func NewParser() *Parser {
	return &Parser{Workers: 4}
}

// jsonlLine is the subset of a transcript line the parser reads.
type jsonlLine struct {
	UUID       string          `json:"uuid"`
	ParentUUID string          `json:"parentUuid,omitempty"`
	Type       string          `json:"type"`
	Message    json.RawMessage `json:"message,omitempty"`
	Timestamp  string          `json:"timestamp,omitempty"`
	SessionID  string          `json:"sessionId,omitempty"`
	Cwd        string          `json:"cwd,omitempty"`
}

type messageBody struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type contentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// ParseError records a problem at a specific line. Line 0 is a file-level
// error.
type ParseError struct {
	File  string
	Line  int
	Error string
}

// ParseResult is one parsed transcript plus the lines it could not read.
type ParseResult struct {
	Conversation Conversation
	ErrorCount   int
	Errors       []ParseError
}

func (r *ParseResult) addError(pe ParseError) {
	r.ErrorCount++
	if len(r.Errors) < maxStoredErrors {
		r.Errors = append(r.Errors, pe)
	}
}

// ParseFile reads one transcript. Malformed lines are counted and skipped.
func (p *Parser) ParseFile(path string) (*ParseResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening transcript: %w", err)
	}
	defer file.Close()

	result := &ParseResult{
		Conversation: Conversation{ID: strings.TrimSuffix(filepath.Base(path), ".jsonl")},
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxScanTokenSize)

	lineNum := 0
	sessionSeen := false
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var jl jsonlLine
		if err := json.Unmarshal([]byte(line), &jl); err != nil {
			result.addError(ParseError{File: path, Line: lineNum, Error: fmt.Sprintf("json: %v", err)})
			continue
		}
		if jl.Type != "user" && jl.Type != "assistant" {
			continue
		}

		if !sessionSeen && jl.SessionID != "" {
			result.Conversation.ID = jl.SessionID
			sessionSeen = true
		}
		if result.Conversation.WorkspacePath == "" && jl.Cwd != "" {
			result.Conversation.WorkspacePath = jl.Cwd
		}

		u, ok, err := toUtterance(jl)
		if err != nil {
			result.addError(ParseError{File: path, Line: lineNum, Error: err.Error()})
			continue
		}
		if ok {
			result.Conversation.Utterances = append(result.Conversation.Utterances, u)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning transcript: %w", err)
	}

	for i := range result.Conversation.Utterances {
		result.Conversation.Utterances[i].ConversationID = result.Conversation.ID
	}
	return result, nil
}

func toUtterance(jl jsonlLine) (Utterance, bool, error) {
	u := Utterance{ID: jl.UUID, ReplyTo: jl.ParentUUID}
	if jl.Type == "user" {
		u.Role = RoleHuman
	} else {
		u.Role = RoleAssistant
	}

	if jl.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339Nano, jl.Timestamp)
		if err != nil {
			return Utterance{}, false, fmt.Errorf("timestamp %q: %w", jl.Timestamp, err)
		}
		u.Timestamp = ts
	}

	var body messageBody
	if len(jl.Message) > 0 {
		// Older transcripts store user messages as a bare string.
		var plain string
		if err := json.Unmarshal(jl.Message, &plain); err == nil {
			body.Content, _ = json.Marshal(plain)
		} else if err := json.Unmarshal(jl.Message, &body); err != nil {
			return Utterance{}, false, fmt.Errorf("message: %w", err)
		}
	}

	text, paths := extractContent(body.Content)
	// Tool results arrive as user lines with no text; they are not utterances.
	if text == "" && (u.Role == RoleHuman || len(paths) == 0) {
		return Utterance{}, false, nil
	}
	u.Text = text
	u.FilePaths = paths
	return u, true, nil
}

// extractContent returns the joined text blocks and any file paths passed to
// tool calls.
func extractContent(raw json.RawMessage) (string, []string) {
	if len(raw) == 0 {
		return "", nil
	}
	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return strings.TrimSpace(plain), nil
	}

	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", nil
	}

	var texts, paths []string
	for _, b := range blocks {
		switch b.Type {
		case "text":
			if t := strings.TrimSpace(b.Text); t != "" {
				texts = append(texts, t)
			}
		case "tool_use":
			var input map[string]any
			if err := json.Unmarshal(b.Input, &input); err != nil {
				continue
			}
			for _, key := range toolPathParams {
				if s, ok := input[key].(string); ok && s != "" {
					paths = append(paths, s)
				}
			}
			if cmd, ok := input["command"].(string); ok {
				// Shell commands are kept as text so "git add ." style
				// actions are visible in the evidence context.
				texts = append(texts, "$ "+cmd)
				paths = append(paths, FilePaths(cmd)...)
			}
		}
	}
	return strings.Join(texts, "\n"), paths
}

// ParseDir parses every *.jsonl file in dir and its immediate
// subdirectories. Files are parsed concurrently; the result order follows the
// sorted file list.
func (p *Parser) ParseDir(ctx context.Context, dir string) ([]Conversation, []ParseError, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return nil, nil, fmt.Errorf("globbing transcripts: %w", err)
	}
	nested, err := filepath.Glob(filepath.Join(dir, "*", "*.jsonl"))
	if err != nil {
		return nil, nil, fmt.Errorf("globbing transcripts: %w", err)
	}
	files = append(files, nested...)
	sort.Strings(files)

	results := make([]*ParseResult, len(files))
	fileErrs := make([]error, len(files))

	g, ctx := errgroup.WithContext(ctx)
	workers := p.Workers
	if workers <= 0 {
		workers = 1
	}
	g.SetLimit(workers)
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i], fileErrs[i] = p.ParseFile(f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var convs []Conversation
	var errs []ParseError
	for i, r := range results {
		if fileErrs[i] != nil {
			errs = append(errs, ParseError{File: files[i], Error: fileErrs[i].Error()})
			continue
		}
		errs = append(errs, r.Errors...)
		if len(r.Conversation.Utterances) > 0 {
			convs = append(convs, r.Conversation)
		}
	}
	return convs, errs, nil
}
