package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"

	"clinical-advisor-be/internal/dto"
	"clinical-advisor-be/pkg/client"
	"clinical-advisor-be/pkg/markdown"
	"clinical-advisor-be/pkg/stream"
)

func main() {
	baseURL := flag.String("url", "http://localhost:3000", "advisor backend base URL")
	message := flag.String("m", "", "clinical question to send")
	plain := flag.Bool("markdown", false, "request plain markdown instead of structured blocks")
	flag.Parse()

	if *message == "" {
		fmt.Fprintln(os.Stderr, "usage: advisor-cli -m \"question\" [-url http://host:port]")
		os.Exit(1)
	}

	req := dto.StreamChatRequest{Message: *message}
	if *plain {
		req.Mode = "fallback"
	}
	payload, err := json.Marshal(req)
	if err != nil {
		log.Fatalf("encode request: %v", err)
	}

	resp, err := http.Post(*baseURL+"/api/advisor/v1/stream", "application/json", bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("connect to advisor: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Fatalf("advisor returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	clientLog := log.New(io.Discard, "", 0)
	if os.Getenv("ADVISOR_CLI_DEBUG") == "true" {
		clientLog = log.New(os.Stderr, "[CLI] ", log.LstdFlags)
	}

	consumer := client.NewConsumer(resp.Body, func(string) markdown.InstructionSink {
		return markdown.NewTermSink(os.Stdout)
	}, clientLog)
	consumer.OnBlock = func(_ string, block *stream.Block) {
		renderBlock(block)
	}

	if err := consumer.Run(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "\nstream interrupted: %v\n", err)
	}

	for _, msg := range consumer.Messages() {
		if msg.Err != "" {
			color.New(color.FgRed).Fprintf(os.Stderr, "\nadvisor error: %s\n", msg.Err)
		}
		if msg.Notice != "" {
			color.New(color.FgYellow).Fprintf(os.Stderr, "\n%s\n", msg.Notice)
		}
	}
}

func renderBlock(b *stream.Block) {
	switch b.Element {
	case stream.ElementParagraph:
		fmt.Println(b.Text)
		fmt.Println()

	case stream.ElementUnorderedList:
		for _, item := range b.Items {
			fmt.Printf("  • %s\n", item)
		}
		fmt.Println()

	case stream.ElementOrderedList:
		for i, item := range b.Items {
			fmt.Printf("  %d. %s\n", i+1, item)
		}
		fmt.Println()

	case stream.ElementTable:
		bold := color.New(color.Bold)
		widths := columnWidths(b.Header, b.Rows)
		bold.Println(formatRow(b.Header, widths))
		fmt.Println(strings.Repeat("─", rowWidth(widths)))
		for _, row := range b.Rows {
			fmt.Println(formatRow(row, widths))
		}
		fmt.Println()

	case stream.ElementReferences:
		heading := color.New(color.FgCyan, color.Bold)
		heading.Println("References")
		keys := make([]string, 0, len(b.References))
		for k := range b.References {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  [%s] %s\n", k, b.References[k])
		}
		fmt.Println()
	}
}

func columnWidths(header []string, rows [][]string) []int {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	return widths
}

func formatRow(cells []string, widths []int) string {
	var sb strings.Builder
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		sb.WriteString(fmt.Sprintf("%-*s", w, cell))
		if i < len(widths)-1 {
			sb.WriteString("  ")
		}
	}
	return sb.String()
}

func rowWidth(widths []int) int {
	total := 0
	for _, w := range widths {
		total += w
	}
	if len(widths) > 1 {
		total += 2 * (len(widths) - 1)
	}
	return total
}
