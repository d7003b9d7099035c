package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/johnpham4/legal-rag-llm/internal/model"
)

// maxLineBytes 是 JSONL 单行的上限，法律条文片段可能很长。
const maxLineBytes = 16 << 20

// readChunks 逐行解析 JSONL 片段，空行跳过。
func readChunks(r io.Reader, fn func(model.Chunk) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var c model.Chunk
		if err := json.Unmarshal(raw, &c); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(c); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func readChunkFile(path string, fn func(model.Chunk) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := readChunks(f, fn); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
