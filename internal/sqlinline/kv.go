package sqlinline

const QCreateKVEntries = `--sql 3c1f0b8e-51a2-4d8e-9a47-6e2b0f7d1c55
create table if not exists kv_entries (
    namespace text not null,
    key text not null,
    value bytea not null,
    version bigint not null default 1,
    updated_at timestamptz not null default now(),
    primary key (namespace, key)
);
`

const QSelectKVEntry = `--sql 7a0e5c92-4d1b-4f6a-b3e8-1c9d2f5a7e04
select value, version
from kv_entries
where namespace = $1::text and key = $2::text
limit 1;
`

// QUpsertKVEntry writes only when the stored version still equals $4, so a
// concurrent writer that got there first makes the statement affect zero rows.
const QUpsertKVEntry = `--sql e4b81f27-6c3a-4e9d-a052-8d7f3b1c6e19
insert into kv_entries (namespace, key, value, version, updated_at)
values ($1::text, $2::text, $3::bytea, 1, now())
on conflict (namespace, key) do update set
    value = excluded.value,
    version = kv_entries.version + 1,
    updated_at = now()
where kv_entries.version = $4::bigint;
`
