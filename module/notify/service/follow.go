package service

import (
	"context"
	"encoding/json"

	"RProject/tools/errs"
)

// FollowEvent is the record published by the social service when one user
// starts following another.
type FollowEvent struct {
	Follower string `json:"follower"`
	Followee string `json:"followee"`
}

// HandleFollowEvent turns a consumed follow record into a ledger entry for
// the followee.
func (l *Ledger) HandleFollowEvent(ctx context.Context, data []byte) error {
	var ev FollowEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return errs.ErrValidation.WrapMsg("bad follow event")
	}
	if ev.Follower == "" || ev.Followee == "" || ev.Follower == ev.Followee {
		return errs.ErrValidation.WrapMsg("bad follow event", "follower", ev.Follower, "followee", ev.Followee)
	}
	_, err := l.Create(ctx, ev.Followee, ev.Follower,
		"New follower",
		ev.Follower+" started following you",
		"/profile/"+ev.Follower)
	return err
}
