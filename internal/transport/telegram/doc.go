// Package telegram is the optional operator side channel.
//
// Adapter.Mirror copies announcements into one chat, SendLog serves as the
// logx Telegram sink and /status answers with the runtime snapshot.
package telegram
