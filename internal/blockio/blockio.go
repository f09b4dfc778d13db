// Package blockio extracts block-data payloads from a parsed stream to
// disk: a single file of concatenated raw bytes, and a manifest listing
// one size per line. Neither file's format is specified by the wire
// protocol -- it is purely a convenience for a collaborator that wants
// the opaque bytes without re-implementing the walk.
package blockio

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/kbinani/jdeser/jdeser"
)

// Extractor walks a jdeser.Result's content tree collecting every
// BlockData payload in stream discovery order.
type Extractor struct {
	blocks [][]byte
}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Collect walks result, recording the BlockData payloads of top-level
// block data, of instance annotations and field values (recursively),
// of array elements, and of the annotations of top-level ClassDesc
// items and their super chains. The class descriptors of instances,
// arrays, enums and class objects are not searched.
func (e *Extractor) Collect(result *jdeser.Result) {
	for _, item := range result.Items {
		e.visit(item)
	}
}

func (e *Extractor) visit(c jdeser.Content) {
	switch v := c.(type) {
	case *jdeser.BlockData:
		e.blocks = append(e.blocks, v.Data)
	case *jdeser.Instance:
		for _, anns := range v.Annotations {
			for _, a := range anns {
				e.visit(a)
			}
		}
		for _, vals := range v.FieldValues {
			for _, fv := range vals {
				if fc, ok := fv.(jdeser.Content); ok {
					e.visit(fc)
				}
			}
		}
	case *jdeser.ClassDesc:
		for _, a := range v.Annotations {
			e.visit(a)
		}
		e.visit(v.Super)
	case *jdeser.ArrayObject:
		for _, elem := range v.Elements {
			if ec, ok := elem.(jdeser.Content); ok {
				e.visit(ec)
			}
		}
	case *jdeser.ExceptionState:
		if v.Exception != nil {
			e.visit(v.Exception)
		}
	}
}

// WriteData writes every collected block, in order, concatenated with
// no separator, to path.
func (e *Extractor) WriteData(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating block-data file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, b := range e.blocks {
		if _, err := w.Write(b); err != nil {
			return fmt.Errorf("writing block-data file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing block-data file: %w", err)
	}
	return nil
}

// WriteManifest writes a manifest to path: a "#"-comment header naming
// sourceName and the block count, followed by one decimal size per
// line in collection order.
func (e *Extractor) WriteManifest(path, sourceName string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating block-data manifest: %w", err)
	}
	defer f.Close()

	return e.writeManifestTo(f, sourceName)
}

func (e *Extractor) writeManifestTo(w io.Writer, sourceName string) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "# %s: %d block(s)\n", sourceName, len(e.blocks)); err != nil {
		return fmt.Errorf("writing block-data manifest: %w", err)
	}
	for _, b := range e.blocks {
		if _, err := fmt.Fprintln(bw, len(b)); err != nil {
			return fmt.Errorf("writing block-data manifest: %w", err)
		}
	}
	return bw.Flush()
}
