package resolver

import (
	"fmt"

	"github.com/BearBump/ManifestBox/internal/models"
)

// Коды состояний kuaidi100-подобного API.
var stateLabels = map[string]string{
	"0": models.StateInTransit,
	"1": models.StatePickedUp,
	"2": models.StateProblem,
	"3": models.StateDelivered,
	"4": models.StateReturnSigned,
	"5": models.StateOutForDelivery,
	"6": models.StateReturning,
}

// StateLabel переводит код состояния в нормализованный ярлык.
// Неизвестные коды не теряются: отдаём "unknown state N".
func StateLabel(code string) string {
	if label, ok := stateLabels[code]; ok {
		return label
	}
	return fmt.Sprintf("unknown state %s", code)
}
