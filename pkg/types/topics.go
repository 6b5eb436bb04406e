package types

// TopicAliases maps the monitored topics to the short keys used in report
// filenames and summary sections. Topics not listed here are still parsed
// but never reported.
var TopicAliases = map[string]string{
	"/driver/offer":    "offer",
	"/driver/ride":     "ride",
	"/driver/location": "location",
}

// AliasOrder fixes the emission order of report sections.
var AliasOrder = []string{"offer", "ride", "location"}

// TopicForAlias returns the full topic name for a report alias, or "" when
// the alias is unknown.
func TopicForAlias(alias string) string {
	for topic, a := range TopicAliases {
		if a == alias {
			return topic
		}
	}
	return ""
}
