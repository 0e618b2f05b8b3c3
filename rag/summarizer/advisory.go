package summarizer

import (
	"context"
	"fmt"
)

type advisoryPolicy int

const (
	// advisoryOncePerMessage reports a message once for the lifetime of the sink.
	advisoryOncePerMessage advisoryPolicy = iota
	// advisoryOncePerCall reports at most once per call, without consulting the sink.
	advisoryOncePerCall
)

func truncationWarning(maxLen int) string {
	return fmt.Sprintf("One or more of your input document texts is longer than the specified "+
		"maximum sequence length for this summarizer model. "+
		"Generating summary from first %d tokens.", maxLen)
}

// advise warns when a span exceeds the tokenizer's limit. It never blocks
// inference; only tokenizer failures are returned.
func (s *BatchSummarizer) advise(ctx context.Context, spans []string, policy advisoryPolicy) error {
	if s.tokenizer == nil {
		return nil
	}
	encoded, err := s.tokenizer.EncodeBatch(spans)
	if err != nil {
		return err
	}
	limit := s.tokenizer.ModelMaxLength()
	for i, ids := range encoded {
		if len(ids) <= limit {
			continue
		}
		// The message depends only on the limit, so the first offender decides.
		msg := truncationWarning(limit)
		if policy == advisoryOncePerCall {
			s.logger.WarnContext(ctx, msg, "span", i, "tokens", len(ids))
			return nil
		}
		first, err := s.cfg.diagnostics.Record(ctx, msg)
		if err != nil {
			s.logger.ErrorContext(ctx, "advisory sink failed", "error", err)
			first = true
		}
		if first {
			s.logger.WarnContext(ctx, msg, "span", i, "tokens", len(ids))
		}
		return nil
	}
	return nil
}
