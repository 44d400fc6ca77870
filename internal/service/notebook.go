package service

import (
	"context"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/Iron-Ham/pagebook/internal/errors"
	"github.com/Iron-Ham/pagebook/internal/notebook"
)

// importWorkers bounds the number of sections imported concurrently.
const importWorkers = 4

// ImportOutcome is what happened to one imported section.
type ImportOutcome string

const (
	OutcomeCreated ImportOutcome = "created"
	OutcomeUpdated ImportOutcome = "updated"
	OutcomeSkipped ImportOutcome = "skipped"
)

// ImportResult maps each section title to its outcome.
type ImportResult map[string]ImportOutcome

// Titles returns the titles with the given outcome, sorted.
func (r ImportResult) Titles(outcome ImportOutcome) []string {
	var titles []string
	for title, o := range r {
		if o == outcome {
			titles = append(titles, title)
		}
	}
	sort.Strings(titles)
	return titles
}

type imported struct {
	title   string
	outcome ImportOutcome
}

// Import adds every section of nb as a page. Existing pages are skipped
// unless overwrite is set, in which case their content is replaced through
// a conditional save. Sections are imported concurrently; the first error
// cancels the rest, and the result lists what completed.
func (s *Service) Import(ctx context.Context, nb notebook.Notebook, overwrite bool) (ImportResult, error) {
	if err := s.gate.Require(); err != nil {
		return nil, err
	}

	p := pool.NewWithResults[imported]().
		WithContext(ctx).
		WithCancelOnError().
		WithMaxGoroutines(importWorkers)

	for _, section := range nb.Sections {
		p.Go(func(ctx context.Context) (imported, error) {
			outcome, err := s.importSection(ctx, section, overwrite)
			if err != nil {
				return imported{}, errors.Wrapf(err, "import %q", section.Title)
			}
			return imported{title: section.Title, outcome: outcome}, nil
		})
	}

	done, err := p.Wait()
	result := make(ImportResult, len(done))
	for _, d := range done {
		result[d.title] = d.outcome
	}
	s.logger.Info("notebook imported",
		"created", len(result.Titles(OutcomeCreated)),
		"updated", len(result.Titles(OutcomeUpdated)),
		"skipped", len(result.Titles(OutcomeSkipped)),
		"failed", err != nil)
	return result, err
}

func (s *Service) importSection(ctx context.Context, section notebook.Section, overwrite bool) (ImportOutcome, error) {
	outcome := OutcomeCreated

	v, err := s.store.Create(ctx, section.Title)
	switch {
	case err == nil:
	case errors.Is(err, errors.ErrPageExists):
		if !overwrite {
			return OutcomeSkipped, nil
		}
		if _, v, err = s.store.Load(section.Title); err != nil {
			return "", err
		}
		outcome = OutcomeUpdated
	default:
		return "", err
	}

	if _, err := s.store.SaveIfMatch(ctx, section.Title, section.Title, section.Content, v); err != nil {
		return "", err
	}
	return outcome, nil
}

// Export returns every page as a notebook stamped with the current time.
func (s *Service) Export(title string) (notebook.Notebook, error) {
	docs, err := s.Pages()
	if err != nil {
		return notebook.Notebook{}, err
	}

	nb := notebook.Notebook{
		Meta: notebook.Meta{
			Title:      title,
			ExportedAt: time.Now().UTC().Truncate(time.Second),
			Pages:      len(docs),
		},
		Sections: make([]notebook.Section, len(docs)),
	}
	for i, d := range docs {
		nb.Sections[i] = notebook.Section{Title: d.Title, Content: d.Content}
	}
	return nb, nil
}
