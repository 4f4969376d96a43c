/*
Copyright © 2015-2022 Leo Antunes <leo@costela.net>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

package milpa

import (
	"context"
	"errors"
	"fmt"

	"github.com/costela/milpa/internal/simplex"
)

// withLimits derives the context a solve runs under. The time limit is
// implemented as a deadline so every blocking step sees it through the
// same cancellation path.
func withLimits(ctx context.Context, cfg SolveConfig) (context.Context, context.CancelFunc) {
	if cfg.TimeLimit > 0 {
		return context.WithTimeout(ctx, cfg.TimeLimit)
	}
	return context.WithCancel(ctx)
}

// interrupted reports whether err stems from cancellation.
func interrupted(err error) bool {
	return errors.Is(err, simplex.ErrInterrupted) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// translateError maps solver internal errors onto the public SolveError
// values.
func translateError(name string, err error) error {
	if errors.Is(err, simplex.ErrNumericalInstability) {
		return fmt.Errorf("solving model %q: %w (%v)", name, ErrNumericalInstability, err)
	}
	return fmt.Errorf("solving model %q: %w", name, err)
}
