// Command queue manages the durable, ordered playlist backing queue.json.
// Every subcommand prints the resulting queue state as JSON.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/richinsley/audiostagepipe/internal/loader"
	"github.com/richinsley/audiostagepipe/internal/perr"
	"github.com/richinsley/audiostagepipe/internal/queue"
	"github.com/richinsley/audiostagepipe/internal/wire"
)

type listing struct {
	CurrentIndex int           `json:"current_index"`
	Mode         queue.Mode    `json:"playback_mode"`
	Entries      []queue.Entry `json:"entries"`
}

func main() {
	queueFile := flag.String("f", "queue.json", "queue file path")
	help := flag.Bool("help", false, "show this help message")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *help {
		fmt.Fprintln(os.Stderr, "queue [-f queue.json] add <files...> | list | remove <i> | clear | next | previous | shuffle | loop <mode>")
		flag.PrintDefaults()
		return
	}
	if *version {
		fmt.Println("queue 1.0.0")
		return
	}

	args := flag.Args()
	if len(args) < 1 {
		log.Fatalf("queue: missing subcommand")
	}

	q, err := queue.Open(*queueFile)
	if err != nil {
		fail(err)
	}

	switch args[0] {
	case "add":
		if len(args) < 2 {
			log.Fatalf("queue: add requires at least one file")
		}
		for _, path := range args[1:] {
			header, err := probeHeader(path)
			if err != nil {
				fail(err)
			}
			if err := q.Add(path, header); err != nil {
				fail(err)
			}
		}
	case "list":
		// no mutation
	case "remove":
		if len(args) != 2 {
			log.Fatalf("queue: remove requires exactly one index")
		}
		i, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatalf("queue: invalid index %q", args[1])
		}
		if err := q.Remove(i); err != nil {
			fail(err)
		}
	case "clear":
		if err := q.Clear(); err != nil {
			fail(err)
		}
	case "next":
		if err := q.Advance(); err != nil {
			fail(err)
		}
	case "previous":
		if err := q.Retreat(); err != nil {
			fail(err)
		}
	case "shuffle":
		if err := q.Shuffle(); err != nil {
			fail(err)
		}
	case "loop":
		if len(args) != 2 {
			log.Fatalf("queue: loop requires a mode: sequential|random|loop_single|loop_all")
		}
		if err := q.SetMode(queue.Mode(args[1])); err != nil {
			fail(err)
		}
	default:
		log.Fatalf("queue: unknown subcommand %q", args[0])
	}

	printState(q)
}

// probeHeader loads a file's metadata only (no audio chunks) through the
// same entry-stage logic the loader binary runs, so the queue's stored
// metadata always matches what the pipeline would actually emit.
func probeHeader(path string) (wire.Header, error) {
	var buf bytes.Buffer
	if err := loader.Run(&buf, loader.Options{Path: path, MetadataOnly: true}); err != nil {
		return wire.Header{}, err
	}
	reader, err := wire.NewReader(&buf)
	if err != nil {
		return wire.Header{}, perr.Wrap("queue", perr.CorruptedFile, "failed to parse probed header", err)
	}
	return reader.Header, nil
}

func printState(q *queue.Queue) {
	out := listing{
		CurrentIndex: q.CurrentIndex(),
		Mode:         q.Mode(),
		Entries:      q.Entries(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}

func fail(err error) {
	log.Printf("queue: %v", err)
	os.Exit(perr.KindOf(err).HTTPStatus())
}
