package mqtt

import (
	"fmt"
	"sort"
)

// Subscribe registers handler for a topic filter. Filters may use the + and
// # wildcards, e.g. Topics{}.AllDeviceSets(). The subscription is restored
// after every reconnect; subscribing to the same filter again replaces the
// handler.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := checkTopic(topic, true); err != nil {
		return err
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler for %s", ErrSubscribeFailed, topic)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Subscribe(topic, qos, c.wrapHandler(handler))
	if err := await(token, defaultPublishTimeout, ErrSubscribeFailed); err != nil {
		return err
	}

	c.subMu.Lock()
	c.subscriptions[topic] = subscription{topic: topic, qos: qos, handler: handler}
	c.subMu.Unlock()
	return nil
}

// Unsubscribe removes a subscription. The filter is forgotten even when the
// broker cannot be told, so it is not restored on reconnect.
func (c *Client) Unsubscribe(topic string) error {
	c.subMu.Lock()
	_, ok := c.subscriptions[topic]
	delete(c.subscriptions, topic)
	c.subMu.Unlock()

	if !ok {
		return nil
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return await(c.client.Unsubscribe(topic), defaultPublishTimeout, ErrUnsubscribeFailed)
}

// HasSubscription reports whether topic is subscribed, by exact filter string.
func (c *Client) HasSubscription(topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, ok := c.subscriptions[topic]
	return ok
}

// Subscriptions returns the subscribed filters, sorted.
func (c *Client) Subscriptions() []string {
	c.subMu.RLock()
	topics := make([]string, 0, len(c.subscriptions))
	for t := range c.subscriptions {
		topics = append(topics, t)
	}
	c.subMu.RUnlock()

	sort.Strings(topics)
	return topics
}
