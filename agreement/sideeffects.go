package agreement

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"consentra/email"
)

// stage is one post-persistence side effect. Stages run after the
// transition has been committed and are isolated from one another: a
// failing audit write never suppresses the notification or the email.
type stage struct {
	name string
	run  func(ctx context.Context) error
}

var errDispatchFailed = errors.New("agreement: email dispatcher reported failure")

// dispatchStages runs the stages concurrently, logs every failure with the
// agreement id and stage name for manual follow-up, and returns the
// per-stage outcomes. Nothing here is retried and nothing reverts the
// already-committed transition.
func (s *Service) dispatchStages(ctx context.Context, agreementID string, stages []stage) map[string]error {
	results := make([]error, len(stages))

	var g errgroup.Group
	for i, st := range stages {
		g.Go(func() error {
			results[i] = st.run(ctx)
			return nil
		})
	}
	g.Wait()

	outcome := make(map[string]error, len(stages))
	for i, st := range stages {
		outcome[st.name] = results[i]
		if results[i] != nil {
			s.logger.Error("agreement: side effect failed",
				"agreement_id", agreementID,
				"stage", st.name,
				"error", results[i])
		}
	}
	return outcome
}

// send dispatches one email under the configured timeout, translating the
// dispatcher's boolean into an error for stage capture.
func (s *Service) send(ctx context.Context, msg email.Message) error {
	ctx, cancel := context.WithTimeout(ctx, s.emailTimeout)
	defer cancel()
	if !s.mail.Send(ctx, msg) {
		return errDispatchFailed
	}
	return nil
}
