package batch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/kelora-go/kelora/config"
	"github.com/kelora-go/kelora/decompress"
	"github.com/kelora-go/kelora/parser"
)

// Reader streams configured input sources into a channel of Lines,
// applying the same skip/section/keep/ignore/head early filtering the
// sequential runner applies (spec.md §4.6 steps 1-3), so a parallel run
// sees exactly the same surviving input a sequential run would (spec.md
// §8's byte-identical-output invariant starts here, before any chunking
// or parsing happens).
type Reader struct {
	cfg           *config.Config
	headerBearing bool

	keepRe       *regexp.Regexp
	ignoreRe     *regexp.Regexp
	sectionStart *regexp.Regexp
	sectionEnd   *regexp.Regexp
}

// NewReader builds a Reader from cfg, probing whether the configured
// format is header-bearing (CSV/TSV with HasHeader set) by constructing
// one throwaway parser instance and type-asserting parser.HeaderAware, exactly as
// runner.headerAwareParser does for the sequential loop.
func NewReader(cfg *config.Config) (*Reader, error) {
	headerBearing := false
	if cfg.Input.Format != "" {
		p, err := parser.New(cfg.Input.Format, parser.Options{
			Separator: cfg.Input.Separator,
			HasHeader: cfg.Input.HasHeader,
			Pattern:   cfg.Input.Pattern,
		})
		if err != nil {
			return nil, err
		}
		_, headerBearing = p.(parser.HeaderAware)
		headerBearing = headerBearing && cfg.Input.HasHeader
	}

	sectionStartRe, err := compileOptional(cfg.Input.SectionStart)
	if err != nil {
		return nil, err
	}
	sectionEndRe, err := compileOptional(cfg.Input.SectionEnd)
	if err != nil {
		return nil, err
	}

	return &Reader{
		cfg:           cfg,
		headerBearing: headerBearing,
		keepRe:        cfg.Input.KeepPattern,
		ignoreRe:      cfg.Input.IgnorePattern,
		sectionStart:  sectionStartRe,
		sectionEnd:    sectionEndRe,
	}, nil
}

func compileOptional(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	return regexp.Compile(pattern)
}

// Run streams every configured source (or stdin, if none are given) into
// out, closing it once every source is exhausted, the head limit is
// reached, or ctx is cancelled. A strict-mode open/read failure aborts
// the whole run; a resilient-mode one skips to the next source.
func (r *Reader) Run(ctx context.Context, out chan<- Line) error {
	defer close(out)

	sources := r.cfg.Input.Files
	if len(sources) == 0 {
		sources = []string{""}
	}

	skipRemaining := r.cfg.Input.SkipLines
	sectionActive := r.sectionStart == nil
	headCount := 0

	for _, src := range sources {
		done, err := r.runOneSource(ctx, src, out, &skipRemaining, &sectionActive, &headCount)
		if done {
			return nil
		}
		if err != nil {
			if r.cfg.Processing.Strict {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}

func displayName(path string) string {
	if path == "" {
		return "stdin"
	}
	return path
}

func (r *Reader) openSource(path string) (io.ReadCloser, error) {
	if path == "" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func (r *Reader) runOneSource(ctx context.Context, path string, out chan<- Line, skipRemaining *int, sectionActive *bool, headCount *int) (done bool, err error) {
	f, err := r.openSource(path)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", displayName(path), err)
	}
	defer f.Close()

	rd, err := decompress.Wrap(f)
	if err != nil {
		return false, fmt.Errorf("decompress %s: %w", displayName(path), err)
	}

	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	source := displayName(path)
	fileLine := 0
	needsHeader := r.headerBearing

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}

		line := scanner.Text()
		fileLine++

		if *skipRemaining > 0 {
			*skipRemaining--
			continue
		}

		if r.sectionStart != nil && !*sectionActive {
			if !r.sectionStart.MatchString(line) {
				continue
			}
			*sectionActive = true
		}
		if *sectionActive && r.sectionEnd != nil && r.sectionEnd.MatchString(line) {
			*sectionActive = false
			continue
		}

		if r.keepRe != nil && !r.keepRe.MatchString(line) {
			continue
		}
		if r.ignoreRe != nil && r.ignoreRe.MatchString(line) {
			continue
		}

		if r.cfg.Input.Head > 0 && *headCount >= r.cfg.Input.Head {
			return true, scanner.Err()
		}
		*headCount++

		if needsHeader {
			select {
			case out <- Line{Raw: line, Num: fileLine, Source: source, Header: true}:
			case <-ctx.Done():
				return false, ctx.Err()
			}
			needsHeader = false
			continue
		}

		select {
		case out <- Line{Raw: line, Num: fileLine, Source: source}:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return false, scanner.Err()
}
