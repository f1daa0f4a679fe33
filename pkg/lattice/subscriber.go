package lattice

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Subscribers returns all registered subscribers.
func (c *Client) Subscribers(ctx context.Context) ([]Subscriber, error) {
	var subs []Subscriber
	if err := c.invoke(ctx, http.MethodGet, "/subscribers", nil, nil, nil, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// SubscribersForEvent returns the subscribers registered for one event type.
func (c *Client) SubscribersForEvent(ctx context.Context, eventType string) ([]Subscriber, error) {
	var subs []Subscriber
	path := fmt.Sprintf("/subscribers/for/%s", url.PathEscape(eventType))
	if err := c.invoke(ctx, http.MethodGet, path, nil, nil, nil, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// Subscriber returns one subscriber by id. An unknown id fails with a
// *RemoteError satisfying IsNotFound.
func (c *Client) Subscriber(ctx context.Context, id string) (*Subscriber, error) {
	var sub Subscriber
	path := fmt.Sprintf("/subscriber/%s", url.PathEscape(id))
	if err := c.invoke(ctx, http.MethodGet, path, nil, nil, nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpdateSubscriber replaces the subscription set of a subscriber, creating
// the subscriber if necessary.
func (c *Client) UpdateSubscriber(ctx context.Context, id string, subscriptions []Subscription) (*Subscriber, error) {
	var sub Subscriber
	path := fmt.Sprintf("/subscriber/%s", url.PathEscape(id))
	if err := c.invoke(ctx, http.MethodPut, path, nil, subscriptions, nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// AddSubscription adds one subscription to a subscriber.
func (c *Client) AddSubscription(ctx context.Context, id string, sub Subscription) (*Subscriber, error) {
	query := url.Values{
		"timeout":             []string{strconv.FormatInt(sub.TimeoutSeconds, 10)},
		"wait_for_completion": []string{strconv.FormatBool(sub.WaitForCompletion)},
	}
	path := fmt.Sprintf("/subscriber/%s/%s", url.PathEscape(id), url.PathEscape(sub.MessageType))

	var updated Subscriber
	if err := c.invoke(ctx, http.MethodPost, path, query, nil, nil, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteSubscription removes one subscription from a subscriber.
func (c *Client) DeleteSubscription(ctx context.Context, id string, sub Subscription) (*Subscriber, error) {
	path := fmt.Sprintf("/subscriber/%s/%s", url.PathEscape(id), url.PathEscape(sub.MessageType))
	var updated Subscriber
	if err := c.invoke(ctx, http.MethodDelete, path, nil, nil, nil, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteSubscriber removes a subscriber and all its subscriptions.
func (c *Client) DeleteSubscriber(ctx context.Context, id string) error {
	path := fmt.Sprintf("/subscriber/%s", url.PathEscape(id))
	return c.invoke(ctx, http.MethodDelete, path, nil, nil, nil, nil)
}
