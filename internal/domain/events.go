package domain

// Event is a fact broadcast on the application bus. The set of events is
// closed: only types in this file implement it, so subscribers can switch
// exhaustively.
//
// Events are immutable after creation. Events dispatched by a single
// publisher are delivered in dispatch order; no ordering holds across
// publishers.
type Event interface {
	isEvent()
}

// ListsFetched reports that the full set of lists was reloaded.
type ListsFetched struct {
	Lists []List
}

// ListAdded reports a list confirmed created remotely.
type ListAdded struct {
	List List
}

// ListUpdated reports a list confirmed updated remotely.
type ListUpdated struct {
	List List
}

// ListsRemoved reports lists confirmed deleted remotely. Cascade deletion
// of contained items and their alerts happens in reaction to this event.
type ListsRemoved struct {
	Lists []List
}

// ListRemotelyUpdated reports that a push notification flagged a list as
// changed by another device.
type ListRemotelyUpdated struct {
	ListID string
}

// ItemsFetched reports that one list's items were reloaded.
type ItemsFetched struct {
	ListID string
	Items  []Item
}

// ItemAdded reports an item confirmed created remotely.
type ItemAdded struct {
	Item Item
}

// ItemUpdated reports an item confirmed updated remotely.
type ItemUpdated struct {
	Item Item
}

// ItemsRemoved reports items confirmed deleted remotely.
type ItemsRemoved struct {
	Items []Item
}

// ItemMoved reports an item confirmed relocated to another list.
// Item carries the post-move state, TargetListID the destination.
type ItemMoved struct {
	Item         Item
	TargetListID string
}

// PhotosFetched reports that one item's photos were reloaded.
type PhotosFetched struct {
	ItemID string
	Photos []Photo
}

// PhotoAdded reports a photo confirmed created remotely.
type PhotoAdded struct {
	Photo Photo
}

// PhotosRemoved reports photos confirmed deleted remotely.
type PhotosRemoved struct {
	Photos []Photo
}

// ErrorOccurred reports a failed repository operation. The cache was left
// untouched; callers may retry.
type ErrorOccurred struct {
	Err error
}

func (ListsFetched) isEvent()        {}
func (ListAdded) isEvent()           {}
func (ListUpdated) isEvent()         {}
func (ListsRemoved) isEvent()        {}
func (ListRemotelyUpdated) isEvent() {}
func (ItemsFetched) isEvent()        {}
func (ItemAdded) isEvent()           {}
func (ItemUpdated) isEvent()         {}
func (ItemsRemoved) isEvent()        {}
func (ItemMoved) isEvent()           {}
func (PhotosFetched) isEvent()       {}
func (PhotoAdded) isEvent()          {}
func (PhotosRemoved) isEvent()       {}
func (ErrorOccurred) isEvent()       {}
