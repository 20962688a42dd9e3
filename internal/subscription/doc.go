// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

// Package subscription is the consumer-facing API of livesync.
//
// A Client ties the resource registry, the polling scheduler, the event bus
// and the chat room sessions together:
//
//	unsubscribe := client.SubscribeToResource("orders", func(u subscription.Update) {
//	    if u.Err != nil {
//	        // u.Items still holds the last good data
//	        showBanner(u.UserMessage)
//	    }
//	    render(u.Items)
//	})
//	defer unsubscribe()
//
//	stop := client.Subscribe(eventbus.ConnectionStatus, func(e eventbus.Event) { ... })
//	defer stop()
//
// Resources named "chatroom:<id>" are chat rooms. They use a push channel
// when transport.url and a credential are configured and poll room history
// otherwise. Every other resource is polled while it has subscribers.
package subscription
