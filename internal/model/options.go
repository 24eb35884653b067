package model

import "strconv"

// Option is one selectable value of a filter field.
type Option struct {
	Label string
	Value string
}

var (
	tyreWidths  = []int{80, 90, 100, 110, 120, 130, 135, 145, 155, 165, 175, 185, 195, 205, 215, 225, 235, 245, 255, 265, 275, 285, 295, 305, 315, 325, 335, 345, 355, 365}
	tyreHeights = []int{25, 30, 35, 40, 45, 50, 55, 60, 65, 70, 75, 80, 85, 90, 95}
	tyreRadii   = []int{10, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24}

	vehicleTypes = []string{"Мото", "Легковий", "Вантажний"}
	seasons      = []string{"Літо", "Зима", "Всесезонна"}
	conditions   = []string{"Нова", "Б/У"}
)

// SortOptions lists the user-selectable sort keys with their labels.
var SortOptions = []Option{
	{Label: "Newest first", Value: string(SortNewest)},
	{Label: "Oldest first", Value: string(SortOldest)},
	{Label: "Cheapest first", Value: string(SortPriceAsc)},
	{Label: "Most expensive first", Value: string(SortPriceDesc)},
}

// Options returns the catalogue of values for a select-type field.
// Free-text fields return nil.
func Options(f Field) []Option {
	switch f {
	case FieldWidth:
		return numberOptions(tyreWidths, "")
	case FieldHeight:
		return numberOptions(tyreHeights, "")
	case FieldRadius:
		return numberOptions(tyreRadii, "R")
	case FieldSeason:
		return stringOptions(seasons)
	case FieldVehicle:
		return stringOptions(vehicleTypes)
	case FieldCondition:
		return stringOptions(conditions)
	}
	return nil
}

func numberOptions(values []int, prefix string) []Option {
	out := make([]Option, 0, len(values))
	for _, v := range values {
		s := strconv.Itoa(v)
		out = append(out, Option{Label: prefix + s, Value: s})
	}
	return out
}

func stringOptions(values []string) []Option {
	out := make([]Option, 0, len(values))
	for _, v := range values {
		out = append(out, Option{Label: v, Value: v})
	}
	return out
}
