package server

import "net/http"

// handleIndex serves a minimal chat page wired to the frame protocol, handy
// for poking at the relay without a real client.
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := w.Write([]byte(indexHTML)); err != nil {
		s.log.Warnw("error writing test page", "error", err)
	}
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Chat Relay</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; max-width: 720px; }
        #messages { border: 1px solid #ccc; height: 300px; padding: 10px; overflow-y: scroll; margin: 10px 0; background: #f9f9f9; }
        #sidebar { color: #555; margin: 10px 0; }
        input[type="text"] { padding: 5px; margin-right: 6px; }
        button { padding: 5px 15px; background: #007cba; color: white; border: none; cursor: pointer; }
        .system { color: gray; font-style: italic; }
        .typing { color: #999; }
    </style>
</head>
<body>
    <h1>Chat Relay</h1>
    <div>
        <input type="text" id="username" placeholder="username">
        <input type="text" id="room" placeholder="room" value="general">
        <button onclick="joinRoom()">Join</button>
        <button onclick="leaveRoom()">Leave</button>
    </div>
    <div id="sidebar">rooms: <span id="rooms">-</span> | users: <span id="users">-</span></div>
    <div id="messages"></div>
    <div id="typing" class="typing"></div>
    <div>
        <input type="text" id="input" placeholder="Type a message..." size="50">
        <button onclick="sendMessage()">Send</button>
    </div>

    <script>
        let ws = null;
        let currentRoom = null;

        function emit(event, data) {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({event: event, data: data}));
            }
        }

        function addLine(text, cls) {
            const div = document.createElement('div');
            if (cls) div.className = cls;
            div.textContent = text;
            const box = document.getElementById('messages');
            box.appendChild(div);
            box.scrollTop = box.scrollHeight;
        }

        function connect() {
            ws = new WebSocket('ws://' + location.host + '/ws');
            ws.onmessage = function(e) {
                const frame = JSON.parse(e.data);
                const d = frame.data;
                switch (frame.event) {
                case 'rooms_list':
                    document.getElementById('rooms').textContent =
                        Object.entries(d).map(([r, n]) => r + '(' + n + ')').join(', ') || '-';
                    break;
                case 'room_messages':
                    document.getElementById('messages').innerHTML = '';
                    (d || []).forEach(m => addLine(m.username + ': ' + m.message,
                        m.username === 'System' ? 'system' : ''));
                    break;
                case 'joined_room':
                    currentRoom = d.room;
                    addLine('joined ' + d.room, 'system');
                    break;
                case 'room_users_updated':
                    document.getElementById('users').textContent = d.users.join(', ');
                    break;
                case 'new_message':
                    addLine(d.username + ': ' + d.message, d.username === 'System' ? 'system' : '');
                    break;
                case 'user_typing':
                    document.getElementById('typing').textContent =
                        d.is_typing ? d.username + ' is typing...' : '';
                    break;
                }
            };
            ws.onclose = function() { addLine('disconnected', 'system'); };
        }

        function joinRoom() {
            const username = document.getElementById('username').value.trim();
            const room = document.getElementById('room').value.trim();
            if (username && room) emit('join_room', {username: username, room: room});
        }

        function leaveRoom() {
            if (currentRoom) {
                emit('leave_room', {room: currentRoom, username: document.getElementById('username').value});
                currentRoom = null;
            }
        }

        function sendMessage() {
            const input = document.getElementById('input');
            const text = input.value.trim();
            if (text && currentRoom) {
                emit('send_message', {message: text, room: currentRoom});
                input.value = '';
                emit('stop_typing', {});
            }
        }

        document.getElementById('input').addEventListener('input', function() {
            if (currentRoom) emit(this.value ? 'typing' : 'stop_typing', {});
        });
        document.getElementById('input').addEventListener('keypress', function(e) {
            if (e.key === 'Enter') sendMessage();
        });

        connect();
    </script>
</body>
</html>`
