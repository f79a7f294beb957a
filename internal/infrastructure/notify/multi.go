package notify

import (
	"context"
	"errors"

	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// Multi reparte la notificación a todos los notifiers; un fallo no detiene a los demás.
type Multi []inventory.Notifier

// Notify devuelve la unión de los errores.
func (m Multi) Notify(ctx context.Context, n entity.MovementNotification) error {
	var errs error
	for _, nt := range m {
		if nt == nil {
			continue
		}
		errs = errors.Join(errs, nt.Notify(ctx, n))
	}
	return errs
}
