package internal

import (
	"chat-relay/domain/event"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

// RenderStats writes the stats rollup as plain text tables, rooms sorted by name.
func RenderStats(w io.Writer, stats event.ChatStatsResponse) {
	summary := newTable(w, "Metric", "Value")
	summary.Append([]string{"Connected users", strconv.Itoa(stats.ConnectedUsers)})
	summary.Append([]string{"Total messages", strconv.Itoa(stats.TotalMessages)})
	summary.Append([]string{"Total rooms", strconv.Itoa(stats.TotalRooms)})
	summary.Append([]string{"Active private chats", strconv.Itoa(stats.ActivePrivateChats)})
	summary.Render()
	_, _ = fmt.Fprintln(w)

	rooms := make([]string, 0, len(stats.RoomMessageCounts))
	for room := range stats.RoomMessageCounts {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)

	table := newTable(w, "Room", "Messages", "Participants", "Created", "Last message")
	for _, room := range rooms {
		row := []string{room, strconv.Itoa(stats.RoomMessageCounts[room]), "-", "-", "-"}
		if info, ok := stats.PrivateChatInfo[room]; ok {
			row[2] = strconv.Itoa(info.Participants)
			row[3] = info.CreatedAt
			row[4] = info.LastMessage
		}
		table.Append(row)
	}
	table.Render()
}
