package services

import (
	"errors"
	"fmt"

	"food-storefront/models"
)

var ErrInvalidSelection = errors.New("invalid customization selection")

// ValidateSelections checks a selection against the item before it is added to a cart.
// Pricing itself stays lenient; this is for fresh input from the customer.
func ValidateSelections(item models.MenuItem, sel models.Selections) error {
	for custID, ids := range sel {
		c, ok := item.FindCustomization(custID)
		if !ok {
			return fmt.Errorf("%w: unknown customization %q", ErrInvalidSelection, custID)
		}
		if c.Type == models.CustomizationRadio && len(ids) > 1 {
			return fmt.Errorf("%w: %s allows one option", ErrInvalidSelection, c.Name)
		}
		seen := map[string]bool{}
		for _, id := range ids {
			if _, ok := c.FindOption(id); !ok {
				return fmt.Errorf("%w: unknown option %q for %s", ErrInvalidSelection, id, c.Name)
			}
			if seen[id] {
				return fmt.Errorf("%w: option %q selected twice", ErrInvalidSelection, id)
			}
			seen[id] = true
		}
	}
	for _, c := range item.Customizations {
		if c.Required && len(sel[c.ID]) == 0 {
			return fmt.Errorf("%w: %s is required", ErrInvalidSelection, c.Name)
		}
	}
	return nil
}

// DefaultSelections picks the first option of every required radio customization.
func DefaultSelections(item models.MenuItem) models.Selections {
	sel := models.Selections{}
	for _, c := range item.Customizations {
		if c.Required && c.Type == models.CustomizationRadio && len(c.Options) > 0 {
			sel[c.ID] = models.OptionIDs{c.Options[0].ID}
		}
	}
	return sel
}

// ToggleOption updates sel as if the customer tapped option optID of custID:
// radio replaces the choice, checkbox flips membership.
func ToggleOption(item models.MenuItem, sel models.Selections, custID, optID string) models.Selections {
	c, ok := item.FindCustomization(custID)
	if !ok {
		return sel
	}
	if _, ok := c.FindOption(optID); !ok {
		return sel
	}
	out := models.Selections{}
	for k, v := range sel {
		out[k] = append(models.OptionIDs(nil), v...)
	}
	if c.Type == models.CustomizationRadio {
		out[custID] = models.OptionIDs{optID}
		return out
	}
	ids := models.OptionIDs(ToggleString(out[custID], optID))
	if len(ids) == 0 {
		delete(out, custID)
	} else {
		out[custID] = ids
	}
	return out
}
