package sqlinline

const QSelectArtists = `--sql 6d731704-e9d3-417d-a279-58a646da9e6f
select id, name, studio, city, country, styles, instagram, created_at
from artists
where hidden = false
order by name;
`

const QSelectArtistByID = `--sql efa2ad42-e9b4-48d4-953b-9c1d6d361ebd
select id, name, studio, city, country, styles, instagram, created_at
from artists
where id = $1::uuid and hidden = false;
`

const QSelectTattoosByArtist = `--sql 8df2e862-59e6-469e-af6a-054b9cf6d888
select id, artist_id, image_url, styles, body_parts, color, size, like_count, created_at
from tattoos
where artist_id = $1::uuid and hidden = false
order by created_at desc;
`

const QSelectTattoosFiltered = `--sql 8ab25979-dfea-49ce-8b5a-de371261e77a
select id, artist_id, image_url, styles, body_parts, color, size, like_count, created_at
from tattoos
where hidden = false
  and (cardinality($1::text[]) = 0 or styles && $1::text[])
  and (cardinality($2::text[]) = 0 or body_parts && $2::text[])
  and ($3::text = '' or color = $3::text)
  and ($4::text = '' or size = $4::text)
order by like_count desc, created_at desc
limit $5::int;
`

const QInsertLike = `--sql 8d6f6a34-3128-46ff-946e-e31bc000a45c
insert into tattoo_likes (tattoo_id, user_id, created_at)
values ($1::uuid, $2::text, now())
on conflict (tattoo_id, user_id) do nothing;
`

const QDeleteLike = `--sql 4ed15c6f-24d2-426a-8dd3-b85f4c086e78
delete from tattoo_likes
where tattoo_id = $1::uuid and user_id = $2::text;
`

const QSelectLikedTattoosByUser = `--sql 18574df9-1699-43f1-94ac-46846741960e
select t.id, t.artist_id, t.image_url, t.styles, t.body_parts, t.color, t.size, t.like_count, t.created_at
from tattoos t
join tattoo_likes l on l.tattoo_id = t.id
where l.user_id = $1::text and t.hidden = false
order by l.created_at desc;
`

const QRefreshTattooLikeCount = `--sql 0ce49aba-1bcc-4193-b69a-d4e05f72872e
update tattoos
set like_count = (select count(*) from tattoo_likes where tattoo_id = $1::uuid)
where id = $1::uuid;
`

const QInsertInquiry = `--sql 3814e5ac-7e11-496d-8307-71642a0d0988
insert into artist_inquiries (id, artist_id, user_id, message, contact_email, country, created_at)
values (gen_random_uuid(), $1::uuid, $2::text, $3::text, $4::text, $5::text, now())
returning id;
`

const QSelectArtistStats = `--sql cf9a984d-8ac4-42c5-9fff-fef0e1a16402
select
    (select count(*) from tattoos where artist_id = $1::uuid and hidden = false),
    (select coalesce(sum(like_count), 0) from tattoos where artist_id = $1::uuid and hidden = false),
    (select count(*) from artist_inquiries where artist_id = $1::uuid);
`

const QSetTattooHidden = `--sql 89f632ec-8c32-4d08-8d69-aeaabf148f4f
update tattoos
set hidden = $2::boolean
where id = $1::uuid;
`

const QSetArtistHidden = `--sql 48fce450-7bbb-46e2-beec-7855de0d513a
update artists
set hidden = $2::boolean
where id = $1::uuid;
`
