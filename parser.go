package dvfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// Parser extracts and decodes voltage tables from IORegistry dumps.
type Parser struct {
	config  Config
	catalog *Catalog
}

// NewParser creates a parser using the provided configuration, filling in defaults as required.
// The bundled chip catalog is used; see NewParserWithCatalog to supply another.
func NewParser(cfg Config) *Parser {
	return NewParserWithCatalog(cfg, DefaultCatalog())
}

// NewParserWithCatalog creates a parser that resolves CPU names through catalog.
func NewParserWithCatalog(cfg Config, catalog *Catalog) *Parser {
	return &Parser{
		config:  normalizeConfig(cfg),
		catalog: catalog,
	}
}

// Stream represents a result stream paired with an error channel.
type Stream struct {
	Results <-chan Result
	Errors  <-chan error
}

// Parse decodes a single document. Entries that fail to decode are reported
// in Result.EntryErrors; the remaining entries are still decoded. Points of
// repeated domains are appended in document order.
func (p *Parser) Parse(text string) Result {
	chip, hasChip, entries := Extract(text)
	if p.config.Chip != "" {
		chip, hasChip = p.config.Chip, true
	}

	result := Result{Chip: chip, HasChip: hasChip}
	if hasChip {
		result.CPUModel = p.catalog.CPUModel(chip)
	}
	p.decodeEntries(&result, entries)

	klog.V(4).InfoS("Parsed document",
		"chip", result.Chip,
		"entries", len(entries),
		"points", len(result.Points),
		"entryErrors", len(result.EntryErrors))

	return result
}

// decodeEntries decodes entries concurrently and appends their points to
// result in entry order.
func (p *Parser) decodeEntries(result *Result, entries []Entry) {
	chip, hasChip := result.Chip, result.HasChip

	decoded := make([][]DataPoint, len(entries))
	errs := make([]error, len(entries))

	var g errgroup.Group
	g.SetLimit(p.config.Workers)
	for i, entry := range entries {
		g.Go(func() error {
			points, err := Decode(entry.Suffix, entry.Hex, chip, hasChip)
			if err != nil {
				errs[i] = &EntryError{Suffix: entry.Suffix, Domain: DomainForSuffix(entry.Suffix), Err: err}
				return nil
			}
			decoded[i] = points
			return nil
		})
	}
	_ = g.Wait()

	for i, entry := range entries {
		if errs[i] != nil {
			klog.V(2).InfoS("Skipping voltage-states entry", "suffix", entry.Suffix, "err", errs[i])
			result.EntryErrors = append(result.EntryErrors, errs[i])
			continue
		}
		result.Points = append(result.Points, decoded[i]...)
	}
}

// ParseSource acquires the text of src, parses it and releases the source on
// every path. Failures to obtain the text are reported as *SourceError.
func (p *Parser) ParseSource(ctx context.Context, src Source) (Result, error) {
	text, err := readSource(ctx, src)
	if err != nil {
		return Result{}, err
	}

	result := p.Parse(text)
	result.Source = src.Name()
	return result, nil
}

// ReadLadder reads a powermetrics sample from src and returns the frequency
// ladder it reports. The source is released on every path.
func ReadLadder(ctx context.Context, src Source) (Ladder, error) {
	text, err := readSource(ctx, src)
	if err != nil {
		return nil, err
	}

	ladder := ParseLadder(text)
	klog.V(4).InfoS("Parsed frequency ladder",
		"source", src.Name(),
		"eCoreSteps", len(ladder[EfficiencyCore]),
		"pCoreSteps", len(ladder[PerformanceCore]),
		"gpuSteps", len(ladder[GPU]))

	return ladder, nil
}

func readSource(ctx context.Context, src Source) (text string, err error) {
	if src == nil {
		return "", fmt.Errorf("dvfs: source cannot be nil")
	}

	reader, release, err := src.Open(ctx)
	if err != nil {
		return "", &SourceError{Source: src.Name(), Err: err}
	}
	if release != nil {
		defer func() {
			if rerr := release(); rerr != nil && err == nil && ctx.Err() == nil {
				err = &SourceError{Source: src.Name(), Err: rerr}
			}
		}()
	}
	if reader == nil {
		return "", &SourceError{Source: src.Name(), Err: errors.New("source returned nil reader")}
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", &SourceError{Source: src.Name(), Err: err}
	}
	if !utf8.Valid(data) {
		return "", &SourceError{Source: src.Name(), Err: errors.New("content is not valid UTF-8 text")}
	}

	return string(data), nil
}

// RunSources parses each source in turn and streams one Result per readable
// document. Unreadable documents are reported on the error channel and do
// not stop the remaining ones.
func (p *Parser) RunSources(ctx context.Context, sources ...Source) *Stream {
	resultsCh := make(chan Result, len(sources))
	errCh := make(chan error, len(sources)+1)

	go func() {
		defer close(resultsCh)
		defer close(errCh)

		for _, src := range sources {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			default:
			}

			result, err := p.ParseSource(ctx, src)
			if err != nil {
				errCh <- err
				continue
			}
			resultsCh <- result
		}
	}()

	return &Stream{
		Results: resultsCh,
		Errors:  errCh,
	}
}

// ParseText parses text with the default configuration.
func ParseText(text string) Result {
	return NewParser(Config{}).Parse(text)
}

// ParseFile parses the dump stored at path with the given configuration.
func ParseFile(ctx context.Context, config Config, path string) (Result, error) {
	return NewParser(config).ParseSource(ctx, FileSource{Path: path})
}

// ParseLive reads the live registry through ioreg and parses it.
func ParseLive(ctx context.Context, config Config) (Result, error) {
	parser := NewParser(config)
	return parser.ParseSource(ctx, NewCommandSource(parser.config))
}
