package domain

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

func formatNumber(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}

func outOfRangeMessage(name string, value, min, max float32) string {
	return fmt.Sprintf("Unable to set value of attribute '%s' to %s as it is out of the specified range %s to %s.",
		name, formatNumber(value), formatNumber(min), formatNumber(max))
}

func categoryOutOfRangeMessage(name string, index, count int) string {
	return fmt.Sprintf("Unable to set value of attribute '%s' to %d as it is out of the specified range 0 to %d.",
		name, index, count-1)
}

func typeMismatchMessage(op, name string, actual, requested Type) string {
	return fmt.Sprintf("Unable to %s attribute '%s' as it is a %s attribute, not a %s attribute.",
		op, name, actual, requested)
}

func boundAttributeMessage(op, name, container string) string {
	return fmt.Sprintf("Unable to %s attribute '%s' in container '%s' as the container is bound.", op, name, container)
}

func boundContainerMessage(op, container string) string {
	return fmt.Sprintf("Unable to %s container '%s' as the container is bound.", op, container)
}

// ReadinessMessage formats the warning emitted when a container is submitted
// with unset attributes. Names are sorted alphabetically.
func ReadinessMessage(kind ContainerKind, container string, unset []string) string {
	sorted := slices.Clone(unset)
	slices.Sort(sorted)
	return fmt.Sprintf("Attributes [%s] of %s '%s' are not set. To fix this issue, set attributes to a valid value before stepping an episode.",
		strings.Join(sorted, ", "), kind, container)
}

func feelerCountMessage(name string, got, want int) string {
	return fmt.Sprintf("Unable to set feelers attribute '%s' with %d distances as it has %d feelers.", name, got, want)
}

func feelerIDCountMessage(name string, got, want int) string {
	return fmt.Sprintf("Unable to set feelers attribute '%s' with %d ids as it has %d id slots.", name, got, want)
}
