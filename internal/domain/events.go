package domain

type CartOp string

const (
	OpAdd         CartOp = "add"
	OpSetQuantity CartOp = "set_quantity"
	OpRemove      CartOp = "remove"
	OpClear       CartOp = "clear"
	OpPatch       CartOp = "patch"
	OpReplace     CartOp = "replace"
	OpExternal    CartOp = "external"
)

// CartChanged tells observers to re-read the cart. It is a cue, not a diff.
type CartChanged struct {
	Op        CartOp
	Key       string
	ProductID ProductID
	// Quantity is the amount added, set only for OpAdd.
	Quantity int
	// External is set when the change was written by another session of the same store.
	External bool
}

type AvailabilityChanged struct {
	ID        ProductID
	Available bool
}
