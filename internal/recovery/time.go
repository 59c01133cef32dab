package recovery

import "time"

func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
