package relate

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Serializer is the §4.12 Turtle/N-Triples writer: a single buffered
// writer behind one mutex. It implements Sink directly so the engine and
// fact writer can write straight through it with no intermediate channel
// when single-process output is all that's needed.
type Serializer struct {
	mu  sync.Mutex
	w   *bufio.Writer
	ns  *Namespaces
	fmt OutputFormat

	headerWritten bool

	// window holds up to windowSize triples to group by subject before
	// flushing, a best-effort Turtle grouping pass, never a full sort.
	window     []Triple
	windowSize int
}

// defaultTurtleWindow bounds how many triples the Turtle writer buffers
// before grouping-and-flushing, per §4.12 ("a bounded window, not a full
// sort -- planet-scale output cannot be fully buffered").
const defaultTurtleWindow = 4096

// NewSerializer wraps w for the given format and namespace table.
func NewSerializer(w io.Writer, ns *Namespaces, format OutputFormat) *Serializer {
	return &Serializer{
		w:          bufferedWriter(w),
		ns:         ns,
		fmt:        format,
		windowSize: defaultTurtleWindow,
	}
}

// WriteTriple implements Sink. For N-Triples it writes the fully expanded
// line immediately. For Turtle it buffers into the grouping window and
// flushes the window once full (or on Close).
func (s *Serializer) WriteTriple(t Triple) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fmt == NTriples {
		return s.writeNTripleLocked(t)
	}

	if !s.headerWritten {
		if err := s.writeTurtleHeaderLocked(); err != nil {
			return err
		}
	}
	s.window = append(s.window, t)
	if len(s.window) >= s.windowSize {
		return s.flushWindowLocked()
	}
	return nil
}

// Close flushes any buffered Turtle window and the underlying writer.
func (s *Serializer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fmt == Turtle && len(s.window) > 0 {
		if err := s.flushWindowLocked(); err != nil {
			return err
		}
	}
	return s.w.Flush()
}

func (s *Serializer) writeNTripleLocked(t Triple) error {
	_, err := fmt.Fprintf(s.w, "%s %s %s .\n", s.expandTerm(t.Subject), s.expandTerm(t.Predicate), s.expandObject(t.Object))
	return err
}

func (s *Serializer) writeTurtleHeaderLocked() error {
	for _, e := range s.ns.entries {
		if _, err := fmt.Fprintf(s.w, "@prefix %s: <%s> .\n", e.prefix, e.iri); err != nil {
			return err
		}
	}
	if _, err := s.w.WriteString("\n"); err != nil {
		return err
	}
	s.headerWritten = true
	return nil
}

// flushWindowLocked groups the buffered window's triples by subject and
// writes one Turtle stanza per subject, then clears the window. Triples
// for the same subject that fall outside the current window (the input
// stream moved on before they all arrived) simply start a new stanza --
// Turtle is valid either way, just less compact, which §4.12 accepts as
// the cost of a bounded window.
func (s *Serializer) flushWindowLocked() error {
	bySubject := make(map[string][]Triple, len(s.window))
	var order []string
	for _, t := range s.window {
		if _, ok := bySubject[t.Subject]; !ok {
			order = append(order, t.Subject)
		}
		bySubject[t.Subject] = append(bySubject[t.Subject], t)
	}

	for _, subj := range order {
		triples := bySubject[subj]
		if _, err := fmt.Fprintf(s.w, "%s\n", subj); err != nil {
			return err
		}
		for i, t := range triples {
			sep := " ;"
			if i == len(triples)-1 {
				sep = " ."
			}
			if _, err := fmt.Fprintf(s.w, "    %s %s%s\n", t.Predicate, t.Object, sep); err != nil {
				return err
			}
		}
	}
	s.window = s.window[:0]
	return nil
}

func (s *Serializer) expandTerm(term string) string {
	expanded := s.ns.Expand(term)
	return "<" + expanded + ">"
}

// expandObject expands an object term unless it's already a typed/plain
// literal (starts with a quote), in which case the literal's datatype
// suffix (a "prefix:local" term after ^^) still needs expanding for valid
// N-Triples.
func (s *Serializer) expandObject(obj string) string {
	if len(obj) == 0 || obj[0] != '"' {
		return s.expandTerm(obj)
	}
	idx := strings.LastIndex(obj, "^^")
	if idx < 0 {
		return obj
	}
	literal := obj[:idx]
	datatype := obj[idx+2:]
	return literal + "^^<" + s.ns.Expand(datatype) + ">"
}
