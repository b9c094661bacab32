package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// maxUsersPerRequest is the Helix limit on login/id parameters per call.
const maxUsersPerRequest = 100

// ErrUserNotFound is returned when a requested login does not exist.
var ErrUserNotFound = errors.New("user not found")

// GetUsers fetches users by login name, batching requests as needed.
// Logins that do not exist are absent from the result. Cached users are
// returned without a request.
func (c *Client) GetUsers(ctx context.Context, logins []string) ([]User, error) {
	var users []User
	var missing []string

	for _, login := range logins {
		key := strings.ToLower(login)
		if c.users != nil {
			if u, ok := c.users.Get(key); ok {
				users = append(users, u)
				continue
			}
		}
		missing = append(missing, key)
	}

	for start := 0; start < len(missing); start += maxUsersPerRequest {
		end := min(start+maxUsersPerRequest, len(missing))

		query := url.Values{}
		for _, login := range missing[start:end] {
			query.Add("login", login)
		}

		var resp UsersResponse
		if err := c.get(ctx, "/users", query, &resp); err != nil {
			return nil, fmt.Errorf("get users: %w", err)
		}

		for _, u := range resp.Data {
			if c.users != nil {
				c.users.Add(strings.ToLower(u.Login), u)
			}
			users = append(users, u)
		}
	}

	return users, nil
}

// ResolveUserIDs maps each lowercased login to its user id. Every login
// must exist.
func (c *Client) ResolveUserIDs(ctx context.Context, logins []string) (map[string]string, error) {
	users, err := c.GetUsers(ctx, logins)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]string, len(users))
	for _, u := range users {
		ids[strings.ToLower(u.Login)] = u.ID
	}

	for _, login := range logins {
		if _, ok := ids[strings.ToLower(login)]; !ok {
			return nil, fmt.Errorf("resolve %q: %w", login, ErrUserNotFound)
		}
	}

	c.logger.Debug("resolved user ids", "count", len(ids))
	return ids, nil
}
