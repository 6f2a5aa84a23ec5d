package ingest

// fieldChain lists the candidate payload paths for one canonical field in
// priority order. Paths are dotted; numeric segments index arrays.
type fieldChain struct {
	field string
	paths []string
}

var fieldChains = []fieldChain{
	{FieldFileType, []string{
		"file_type", "filetype", "event.file.filetype", "file.filetype", "file_info.filetype",
		"event.files.0.filetype", "files.0.filetype",
	}},
	{FieldFileID, []string{
		"file_id", "fileId", "event.file_id", "event.file.id", "file.id", "file_info.id",
		"event.files.0.id", "files.0.id",
	}},
	{FieldAuthToken, []string{"auth_token", "authToken", "bot_token", "slack_token", "access_token"}},
	{FieldUserID, []string{"user_id", "userId", "event.user_id", "event.user", "user", "user.id", "file_info.user"}},
	{FieldChannelID, []string{
		"channel_id", "channelId", "event.channel_id", "event.channel", "channel", "channel.id",
		"event.file.channels.0", "file_info.channels.0",
	}},
	{FieldTimestamp, []string{
		"timestamp", "event_ts", "event.event_ts", "ts", "event.ts", "event_time", "file_info.timestamp",
	}},
	{FieldFileURL, []string{
		"file_url", "url_private_download", "url_private", "event.file.url_private_download",
		"event.file.url_private", "file.url_private_download", "file.url_private",
		"file_info.url_private_download", "file_info.url_private", "event.files.0.url_private_download",
		"files.0.url_private_download",
	}},
	{FieldFileName, []string{"file_name", "filename", "name", "event.file.name", "file.name", "file_info.name", "files.0.name"}},
	{FieldMIMEType, []string{"mimetype", "mime_type", "event.file.mimetype", "file.mimetype", "file_info.mimetype", "files.0.mimetype"}},
	{FieldThreadTS, []string{"thread_ts", "event.thread_ts", "message_ts", "event.ts", "ts"}},
	{FieldEventType, []string{"event.type", "event_type"}},
	{FieldChallenge, []string{"challenge"}},
}

var sourceIDChain = []string{"event_id", "source_id", "event.event_id", "event.client_msg_id"}

var requiredFields = []string{FieldFileID, FieldAuthToken}
