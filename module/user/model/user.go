package model

// UserModel is the slice of the main application's user record this core
// needs: enough to turn a verified identity into a participant-eligible
// user. The full profile lives in the relational schema owned by the CRUD
// side.
type UserModel struct {
	ID       int64
	Username string
	Email    string
}
