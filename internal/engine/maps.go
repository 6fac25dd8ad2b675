package engine

// MapPool is the full competitive pool the veto phase starts from.
var MapPool = []string{
	"Abyss",
	"Ascent",
	"Bind",
	"Breeze",
	"Fracture",
	"Haven",
	"Icebox",
	"Lotus",
	"Pearl",
	"Split",
	"Sunset",
}
