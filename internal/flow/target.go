package flow

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/chefriend/chefriend-cli/internal/survey"
)

// FallbackTargetID replaces a missing or unparsable store or menu id when
// target resolution is lenient.
const FallbackTargetID int64 = 1

// ResolveTarget parses the store and menu ids given on entry. In lenient
// mode a bad id becomes FallbackTargetID and a warning is logged; in strict
// mode it is an ErrInvalidTarget.
func ResolveTarget(storeRaw, foodRaw string, strict bool, logger *slog.Logger) (survey.Target, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	storeID, err := resolveID("store", storeRaw, strict, logger)
	if err != nil {
		return survey.Target{}, err
	}
	foodID, err := resolveID("menu", foodRaw, strict, logger)
	if err != nil {
		return survey.Target{}, err
	}
	return survey.Target{StoreID: storeID, FoodItemID: foodID}, nil
}

func resolveID(kind, raw string, strict bool, logger *slog.Logger) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err == nil && id > 0 {
		return id, nil
	}
	if strict {
		return 0, fmt.Errorf("%w: %s id %q", ErrInvalidTarget, kind, raw)
	}
	logger.Warn("invalid target id, using fallback", "kind", kind, "value", raw, "fallback", FallbackTargetID)
	return FallbackTargetID, nil
}
